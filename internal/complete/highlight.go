package complete

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
)

// Highlighter computes one shtypes.Color per byte of a command line, the
// way an interactive prompt repaints as the user types. It never
// mutates shell state and never runs external commands beyond the
// read-only PATH/filesystem checks spec.md §4.E calls for.
type Highlighter struct {
	Env       *env.Snapshot
	Cwd       string
	Functions func(name string) bool
}

// Compute returns len(src) colors, one per byte of src.
func (h *Highlighter) Compute(src string) []shtypes.Color {
	colors := make([]shtypes.Color, len(src))
	for i := range colors {
		colors[i] = shtypes.NewColor(shtypes.ColorNormal)
	}

	toks := token.Tokenize(src, token.AcceptUnfinished|token.ShowComments)
	atCommandPosition := true
	// redirectTargets marks String tokens already consumed as the
	// operand of a redirection operator, so the generic argument/command
	// coloring below doesn't repaint over them.
	redirectTargets := make(map[int]bool)

	for i, tok := range toks {
		switch tok.Kind {
		case shtypes.TokPipe:
			fill(colors, tok, shtypes.NewColor(shtypes.ColorOperator))
			atCommandPosition = true
		case shtypes.TokBackground:
			fill(colors, tok, shtypes.NewColor(shtypes.ColorOperator))
		case shtypes.TokEnd:
			fill(colors, tok, shtypes.NewColor(shtypes.ColorStatementTerminator))
			atCommandPosition = true
		case shtypes.TokRedirectOut, shtypes.TokRedirectAppend, shtypes.TokRedirectIn,
			shtypes.TokRedirectFd, shtypes.TokRedirectNoClobber:
			fill(colors, tok, shtypes.NewColor(shtypes.ColorRedirection))
			if j, ok := nextStringToken(toks, i); ok {
				redirectTargets[j] = true
				h.colorRedirectTarget(src, tok, toks[j], colors)
			}
		case shtypes.TokComment:
			fill(colors, tok, shtypes.NewColor(shtypes.ColorComment))
		case shtypes.TokError:
			fill(colors, tok, shtypes.NewColor(shtypes.ColorError))
		case shtypes.TokString:
			if redirectTargets[i] {
				continue
			}
			if atCommandPosition {
				h.colorCommandToken(src, tok, colors)
				atCommandPosition = false
			} else {
				h.colorArgumentToken(src, tok, colors)
			}
		}
	}
	return colors
}

// nextStringToken finds the first String token after index from, the
// target word of the redirection operator at from (there may be
// whitespace, but nothing else, between an operator and its target).
func nextStringToken(toks []shtypes.Token, from int) (int, bool) {
	if from+1 < len(toks) && toks[from+1].Kind == shtypes.TokString {
		return from + 1, true
	}
	return 0, false
}

func fill(colors []shtypes.Color, tok shtypes.Token, c shtypes.Color) {
	start, end := tok.SourceStart, tok.End()
	if start < 0 {
		start = 0
	}
	if end > len(colors) {
		end = len(colors)
	}
	for i := start; i < end; i++ {
		colors[i] = c
	}
}

// colorCommandToken validates the command name against the function
// table, the builtin table, $PATH, and the implicit-cd rule, per
// spec.md §4.E.
func (h *Highlighter) colorCommandToken(src string, tok shtypes.Token, colors []shtypes.Color) {
	name := unquoteArg(tok.Text(src))
	valid := name == "command" || name == "builtin" || name == "exec" || name == "not" ||
		(h.Functions != nil && h.Functions(name)) ||
		isKnownBuiltinName(name)

	if !valid {
		if _, err := exec.LookPath(name); err == nil {
			valid = true
		}
	}
	if !valid {
		target := name
		if !filepath.IsAbs(target) {
			target = filepath.Join(h.Cwd, target)
		}
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			valid = true
		}
	}

	base := shtypes.ColorCommand
	if !valid {
		base = shtypes.ColorError
	}
	colorQuotedToken(src, tok, colors, base)
}

// colorArgumentToken colors a non-command token Param by default, with
// per-character overrides for quotes and escapes, plus the ValidPath
// modifier when the text, with one layer of surrounding quotes removed,
// names an existing path relative to Cwd. Backslash escapes are not
// decoded for that check.
func (h *Highlighter) colorArgumentToken(src string, tok shtypes.Token, colors []shtypes.Color) {
	colorQuotedToken(src, tok, colors, shtypes.ColorParam)

	text := unquoteArg(tok.Text(src))
	target := text
	if !filepath.IsAbs(target) {
		target = filepath.Join(h.Cwd, target)
	}
	if _, err := os.Stat(target); err == nil {
		start, end := tok.SourceStart, tok.End()
		if end > len(colors) {
			end = len(colors)
		}
		for i := start; i < end; i++ {
			colors[i] = colors[i].With(shtypes.ModValidPath)
		}
	}
}

// colorRedirectTarget colors the String token immediately following a
// redirection operator as Redirection, and flags it Error when
// validateRedirectTarget rejects it: an input (<) target must exist and
// not be a directory, and a no-clobber (>?) target must not exist yet.
// Output, append and fd-duplication targets are not checked and are
// always colored Redirection.
func (h *Highlighter) colorRedirectTarget(src string, op, target shtypes.Token, colors []shtypes.Color) {
	valid := h.validateRedirectTarget(src, op, target)
	c := shtypes.ColorRedirection
	if !valid {
		c = shtypes.ColorError
	}
	fill(colors, target, shtypes.NewColor(c))
}

func (h *Highlighter) validateRedirectTarget(src string, op, target shtypes.Token) bool {
	text := unquoteArg(target.Text(src))
	switch op.Kind {
	case shtypes.TokRedirectIn:
		p := text
		if !filepath.IsAbs(p) {
			p = filepath.Join(h.Cwd, p)
		}
		info, err := os.Stat(p)
		return err == nil && !info.IsDir()
	case shtypes.TokRedirectNoClobber:
		p := text
		if !filepath.IsAbs(p) {
			p = filepath.Join(h.Cwd, p)
		}
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	default:
		return true
	}
}

// colorQuotedToken colors a token's interior base, then overrides the
// quote delimiters (ColorQuote) and any backslash-escape pairs
// (ColorEscape), matching how the tokenizer itself records QuoteChar.
func colorQuotedToken(src string, tok shtypes.Token, colors []shtypes.Color, base shtypes.ColorPrimary) {
	fill(colors, tok, shtypes.NewColor(base))
	text := tok.Text(src)
	start := tok.SourceStart

	if tok.QuoteChar != shtypes.QuoteNone && len(text) >= 2 {
		setColor(colors, start, shtypes.NewColor(shtypes.ColorQuote))
		setColor(colors, start+len(text)-1, shtypes.NewColor(shtypes.ColorQuote))
	}
	if tok.QuoteChar == shtypes.QuoteDouble || tok.QuoteChar == shtypes.QuoteNone {
		for i := 0; i < len(text)-1; i++ {
			if text[i] == '\\' {
				setColor(colors, start+i, shtypes.NewColor(shtypes.ColorEscape))
				setColor(colors, start+i+1, shtypes.NewColor(shtypes.ColorEscape))
				i++
			}
		}
	}
}

func setColor(colors []shtypes.Color, idx int, c shtypes.Color) {
	if idx >= 0 && idx < len(colors) {
		colors[idx] = c
	}
}

// HighlightMatchingPairs marks the quote or bracket pair enclosing
// cursor with the match-background modifier, or colors an unmatched
// delimiter under the cursor as Error, per spec.md §4.E.
func HighlightMatchingPairs(src string, cursor int, colors []shtypes.Color) {
	if cursor < 0 || cursor >= len(src) {
		return
	}
	c := src[cursor]
	pairs := map[byte]byte{'(': ')', '[': ']', '{': '}'}
	closers := map[byte]byte{')': '(', ']': '[', '}': '{'}

	if closing, ok := pairs[c]; ok {
		if j := findForwardMatch(src, cursor, c, closing); j >= 0 {
			setColor(colors, cursor, colors[cursor].With(shtypes.ModMatchBackground))
			setColor(colors, j, colors[j].With(shtypes.ModMatchBackground))
		} else {
			setColor(colors, cursor, shtypes.NewColor(shtypes.ColorError))
		}
		return
	}
	if opening, ok := closers[c]; ok {
		if j := findBackwardMatch(src, cursor, opening, c); j >= 0 {
			setColor(colors, cursor, colors[cursor].With(shtypes.ModMatchBackground))
			setColor(colors, j, colors[j].With(shtypes.ModMatchBackground))
		} else {
			setColor(colors, cursor, shtypes.NewColor(shtypes.ColorError))
		}
		return
	}
	if c == '\'' || c == '"' {
		count := strings.Count(src[:cursor], string(c))
		j := -1
		if count%2 == 0 {
			if k := strings.IndexByte(src[cursor+1:], c); k >= 0 {
				j = cursor + 1 + k
			}
		} else {
			j = strings.LastIndexByte(src[:cursor], c)
		}
		if j >= 0 {
			setColor(colors, cursor, colors[cursor].With(shtypes.ModMatchBackground))
			setColor(colors, j, colors[j].With(shtypes.ModMatchBackground))
			return
		}
		setColor(colors, cursor, shtypes.NewColor(shtypes.ColorError))
	}
}

func findForwardMatch(src string, from int, open, close byte) int {
	depth := 0
	for i := from; i < len(src); i++ {
		switch src[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func findBackwardMatch(src string, from int, open, close byte) int {
	depth := 0
	for i := from; i >= 0; i-- {
		switch src[i] {
		case close:
			depth++
		case open:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isKnownBuiltinName(name string) bool {
	for _, b := range builtinNames() {
		if b == name {
			return true
		}
	}
	return false
}
