package expand

import (
	"strings"

	"github.com/diillson/wrensh/internal/shellerr"
)

// expandCmdSubst finds the first top-level "(...)" in text, runs it
// through x.Runner, and recurses on the remainder, cartesian-combining
// results the way variable list expansion does. splitWords selects
// unquoted semantics (each output line becomes its own word, further
// split on whitespace) versus quoted semantics (the whole capture joins
// into one scalar with embedded newlines preserved).
func (x *Expander) expandCmdSubst(text string, splitWords bool) ([]string, shellerr.List) {
	if x.Runner == nil {
		return []string{text}, nil
	}
	i := strings.IndexByte(text, '(')
	if i < 0 {
		return []string{text}, nil
	}
	j := matchParen(text, i)
	if j < 0 {
		// Unterminated — internal/token already reported this upstream;
		// leave the text alone rather than double-report.
		return []string{text}, nil
	}

	before := text[:i]
	inner := text[i+1 : j]
	after := text[j+1:]

	var errs shellerr.List
	lines, err := x.Runner.RunCaptured(inner)
	if err != nil {
		errs = append(errs, shellerr.Wrap(shellerr.KindExpansion, shellerr.CodeCommandSubstError, err.Error(), i, j-i+1, err))
	}

	var results []string
	if splitWords {
		for _, l := range lines {
			results = append(results, strings.Fields(l)...)
		}
		if len(results) == 0 {
			results = []string{""}
		}
	} else {
		results = []string{strings.Join(lines, "\n")}
	}

	restWords, e2 := x.expandCmdSubst(after, splitWords)
	errs = append(errs, e2...)

	out := make([]string, 0, len(results)*len(restWords))
	for _, r := range results {
		for _, rest := range restWords {
			out = append(out, before+r+rest)
		}
	}
	return out, errs
}

// matchParen returns the index of the ')' matching the '(' at open,
// honoring nested parens and nested quotes, or -1 if unbalanced.
func matchParen(s string, open int) int {
	depth := 1
	i := open + 1
	for i < len(s) {
		switch s[i] {
		case '(':
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return i - 1
			}
		case '\'':
			i++
			for i < len(s) && s[i] != '\'' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				i++
			}
			i++
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				i++
			}
			i++
		default:
			i++
		}
	}
	return -1
}
