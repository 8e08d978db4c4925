package expand

import (
	"strconv"
	"strings"

	"github.com/diillson/wrensh/internal/shellerr"
)

// expandQuotedScalar runs command substitution and variable expansion
// inside a double-quoted run, joining list values with a space (spec.md
// §4.C's double-quote $var rule) and never splitting the result into
// multiple words.
func (x *Expander) expandQuotedScalar(text string) (string, shellerr.List) {
	var errs shellerr.List
	if x.Flags&SkipCmdSubst == 0 {
		words, e := x.expandCmdSubst(text, false)
		errs = append(errs, e...)
		if len(words) > 0 {
			text = words[0]
		}
	}
	if x.Flags&SkipVariables == 0 {
		text = x.substituteVariablesScalar(text)
	}
	return unescapeGeneral(text), errs
}

// expandUnquotedSegment runs the same two stages over unquoted text,
// but variable expansion here can multiply one word into several (a
// list variable splits into one argument per element).
func (x *Expander) expandUnquotedSegment(text string) ([]string, shellerr.List) {
	var errs shellerr.List
	words := []string{text}
	if x.Flags&SkipCmdSubst == 0 {
		w, e := x.expandCmdSubst(text, true)
		errs = append(errs, e...)
		words = w
	}
	if x.Flags&SkipVariables == 0 {
		var expanded []string
		for _, w := range words {
			expanded = append(expanded, x.substituteVariablesList(w)...)
		}
		words = expanded
	}
	for i, w := range words {
		words[i] = unescapeGeneral(w)
	}
	return words, errs
}

// substituteVariablesScalar replaces every $name/${name}[idx] reference
// in s with its scalar (space-joined) value.
func (x *Expander) substituteVariablesScalar(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '$' && i+1 < len(s) {
			name, idx, hasIdx, consumed := scanVarRef(s[i:])
			if consumed > 0 {
				val, _ := x.lookupVariable(name, idx, hasIdx)
				b.WriteString(strings.Join(val, " "))
				i += consumed
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// substituteVariablesList is like substituteVariablesScalar but returns
// every combination produced when an unquoted $name expands to more
// than one element, cartesian-combined with the surrounding literal
// text on either side.
func (x *Expander) substituteVariablesList(s string) []string {
	i := 0
	for i < len(s) {
		if s[i] == '$' && i+1 < len(s) {
			name, idx, hasIdx, consumed := scanVarRef(s[i:])
			if consumed > 0 {
				before := s[:i]
				after := s[i+consumed:]
				val, _ := x.lookupVariable(name, idx, hasIdx)
				if len(val) == 0 {
					// Undefined/empty list variables vanish entirely when
					// unquoted, per fish's "$undefined" expands to nothing.
					return x.substituteVariablesList(before + after)
				}
				restCombos := x.substituteVariablesList(after)
				out := make([]string, 0, len(val)*len(restCombos))
				for _, v := range val {
					for _, rest := range restCombos {
						out = append(out, before+v+rest)
					}
				}
				return out
			}
		}
		i++
	}
	return []string{s}
}

// scanVarRef recognizes $name, ${name}, $name[n] and ${name}[n] at the
// start of s, returning the variable name, a 1-based index (if any),
// and the number of bytes consumed (0 if s doesn't start with a
// variable reference at all).
func scanVarRef(s string) (name string, idx int, hasIdx bool, consumed int) {
	if len(s) < 2 || s[0] != '$' {
		return "", 0, false, 0
	}
	i := 1
	braced := false
	if s[i] == '{' {
		braced = true
		i++
	}
	start := i
	for i < len(s) && isVarNameByte(s[i]) {
		i++
	}
	if i == start {
		return "", 0, false, 0
	}
	name = s[start:i]
	if braced {
		if i >= len(s) || s[i] != '}' {
			return "", 0, false, 0
		}
		i++
	}
	if i < len(s) && s[i] == '[' {
		j := i + 1
		for j < len(s) && s[j] != ']' {
			j++
		}
		if j < len(s) {
			if n, err := strconv.Atoi(s[i+1 : j]); err == nil {
				idx = n
				hasIdx = true
				i = j + 1
			}
		}
	}
	return name, idx, hasIdx, i
}

func isVarNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (x *Expander) lookupVariable(name string, idx int, hasIdx bool) ([]string, bool) {
	if x.Env == nil {
		return nil, false
	}
	val, ok := x.Env.Get(name)
	if !ok {
		return nil, false
	}
	if !hasIdx {
		return val, true
	}
	if idx < 1 || idx > len(val) {
		return nil, true
	}
	return []string{val[idx-1]}, true
}
