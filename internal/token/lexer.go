// Package token implements the shell's tokenizer (spec.md §4.A): it
// turns a source string into a stream of shtypes.Token values with
// source offsets, one call to Next at a time, so callers (the parser,
// and the completion engine in resynchronizing modes) can stop early.
package token

import (
	"strconv"
	"strings"

	"github.com/diillson/wrensh/internal/shellerr"
	"github.com/diillson/wrensh/internal/shtypes"
)

// Flags controls tokenizer leniency, mirroring spec.md §4.A.
type Flags uint8

const (
	AcceptUnfinished Flags = 1 << iota
	ShowComments
	SquashErrors
)

// Lexer holds the mutable scanning state. Construct with New and call
// Next repeatedly until it returns ok=false (source exhausted).
type Lexer struct {
	source string
	pos    int
	flags  Flags

	lastQuote   shtypes.QuoteChar
	lastErr     *shellerr.Error
	sawError    bool // true once an Error token has been emitted in non-unfinished mode
	atJobStart  bool // true at the start of a job, so '&' at this position can't be Background
}

func New(source string, flags Flags) *Lexer {
	return &Lexer{source: source, flags: flags, atJobStart: true}
}

func (l *Lexer) accept(string) bool { return l.flags&AcceptUnfinished != 0 }

func isOperatorRune(r byte) bool {
	switch r {
	case '|', ';', '\n', '&', '<', '>', '^':
		return true
	}
	return false
}

func isSpace(r byte) bool { return r == ' ' || r == '\t' }

// Next scans and returns the next token. ok is false only once the
// source is exhausted (or, outside AcceptUnfinished/SquashErrors, once
// an unrecoverable error token has already been produced).
func (l *Lexer) Next() (shtypes.Token, bool) {
	if l.sawError && l.flags&(AcceptUnfinished|SquashErrors) == 0 {
		return shtypes.Token{}, false
	}

	// Skip whitespace (not newlines: those are End tokens).
	for l.pos < len(l.source) && isSpace(l.source[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.source) {
		return shtypes.Token{}, false
	}

	start := l.pos
	c := l.source[l.pos]

	switch {
	case c == '\n' || c == ';':
		l.pos++
		l.atJobStart = true
		return shtypes.Token{Kind: shtypes.TokEnd, SourceStart: start, SourceLength: 1, RedirFd: -1}, true

	case c == '#':
		return l.lexComment(start)

	case c == '|':
		l.pos++
		l.atJobStart = true
		return shtypes.Token{Kind: shtypes.TokPipe, SourceStart: start, SourceLength: l.pos - start, RedirFd: -1}, true

	case c == '&':
		l.pos++
		wasJobStart := l.atJobStart
		l.atJobStart = false
		if wasJobStart {
			// '&' cannot start a job; treat as a literal word boundary error.
			return l.errorToken(start, l.pos-start, shellerr.CodeGenericSyntax, "unexpected '&'")
		}
		return shtypes.Token{Kind: shtypes.TokBackground, SourceStart: start, SourceLength: 1, RedirFd: -1}, true

	case c == '<':
		return l.lexRedirect(start, -1)

	case c == '>':
		return l.lexRedirect(start, -1)

	case c == '^':
		return l.lexRedirect(start, -1)

	case c >= '0' && c <= '9':
		if n, ok := l.peekDigitRedirectPrefix(); ok {
			return l.lexRedirect(start, n)
		}
		return l.lexWord(start)

	default:
		return l.lexWord(start)
	}
}

// peekDigitRedirectPrefix looks ahead from l.pos to see whether the
// digits here are immediately followed by a redirection/pipe operator
// (e.g. "2>", "9999>>", "2|"); if not, the digits are just the start of
// an ordinary word like "123abc".
func (l *Lexer) peekDigitRedirectPrefix() (int, bool) {
	i := l.pos
	for i < len(l.source) && l.source[i] >= '0' && l.source[i] <= '9' {
		i++
	}
	if i >= len(l.source) {
		return 0, false
	}
	switch l.source[i] {
	case '>', '<', '^', '|':
		n, err := strconv.Atoi(l.source[l.pos:i])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func (l *Lexer) lexComment(start int) (shtypes.Token, bool) {
	for l.pos < len(l.source) && l.source[l.pos] != '\n' {
		l.pos++
	}
	tok := shtypes.Token{Kind: shtypes.TokComment, SourceStart: start, SourceLength: l.pos - start, RedirFd: -1}
	if l.flags&ShowComments == 0 {
		// Comments are invisible to the caller unless requested; recurse
		// for the next real token instead of surfacing this one.
		return l.Next()
	}
	return tok, true
}

// lexRedirect scans one of: < > >> >| >? >& ^ ^^ (or the pipe of a
// digit-prefixed "N|", which yields a Pipe token), with an optional
// leading fd (digitFd >= 0 if one was already consumed by the caller's
// lookahead; -1 means "use the operator's default fd").
func (l *Lexer) lexRedirect(start int, digitFd int) (shtypes.Token, bool) {
	if digitFd >= 0 {
		for l.pos < len(l.source) && l.source[l.pos] >= '0' && l.source[l.pos] <= '9' {
			l.pos++
		}
	}
	opStart := l.pos
	c := l.source[l.pos]
	l.pos++

	kind := shtypes.TokRedirectOut
	fd := digitFd

	switch c {
	case '<':
		kind = shtypes.TokRedirectIn
		if fd < 0 {
			fd = 0
		}
	case '^':
		kind = shtypes.TokRedirectOut
		if fd < 0 {
			fd = 2
		}
		if l.pos < len(l.source) && l.source[l.pos] == '^' {
			l.pos++
			kind = shtypes.TokRedirectAppend
		}
	case '>':
		if fd < 0 {
			fd = 1
		}
		switch {
		case l.pos < len(l.source) && l.source[l.pos] == '>':
			l.pos++
			kind = shtypes.TokRedirectAppend
		case l.pos < len(l.source) && l.source[l.pos] == '|':
			l.pos++
			kind = shtypes.TokRedirectOut // no-clobber bypass, still a plain overwrite
		case l.pos < len(l.source) && l.source[l.pos] == '?':
			l.pos++
			kind = shtypes.TokRedirectNoClobber
		case l.pos < len(l.source) && l.source[l.pos] == '&':
			l.pos++
			kind = shtypes.TokRedirectFd
		default:
			kind = shtypes.TokRedirectOut
		}
	case '|':
		kind = shtypes.TokPipe
		l.atJobStart = true
	}

	_ = opStart
	return shtypes.Token{Kind: kind, SourceStart: start, SourceLength: l.pos - start, RedirFd: fd}, true
}

// lexWord scans a single whitespace/operator-delimited word, which may
// internally mix quoted and unquoted runs and nested command
// substitutions. It returns either a String token or an Error token
// (unterminated quote/subshell/escape, or a bad escape value).
func (l *Lexer) lexWord(start int) (shtypes.Token, bool) {
	l.atJobStart = false
	quote := shtypes.QuoteNone
	firstQuote := shtypes.QuoteNone
	mixed := false

	for l.pos < len(l.source) {
		c := l.source[l.pos]

		if quote == shtypes.QuoteNone {
			if isSpace(c) || c == '\n' || c == ';' || c == '|' || c == '&' {
				break
			}
			if c == '>' || c == '<' || c == '^' {
				break
			}
		}
		if c != '\'' && c != '"' {
			mixed = true
		}

		switch {
		case quote == shtypes.QuoteNone && c == '\'':
			quote = shtypes.QuoteSingle
			if firstQuote == shtypes.QuoteNone && l.pos == start {
				firstQuote = shtypes.QuoteSingle
			} else if l.pos != start {
				mixed = true
			}
			l.pos++
			tok, ok, done := l.scanSingleQuoted(start)
			if done {
				return tok, ok
			}
			quote = shtypes.QuoteNone
			continue

		case quote == shtypes.QuoteNone && c == '"':
			quote = shtypes.QuoteDouble
			if firstQuote == shtypes.QuoteNone && l.pos == start {
				firstQuote = shtypes.QuoteDouble
			} else if l.pos != start {
				mixed = true
			}
			l.pos++
			tok, ok, done := l.scanDoubleQuoted(start)
			if done {
				return tok, ok
			}
			quote = shtypes.QuoteNone
			continue

		case quote == shtypes.QuoteNone && c == '(':
			l.pos++
			if tok, ok, done := l.scanSubshell(start); done {
				return tok, ok
			}
			continue

		case quote == shtypes.QuoteNone && c == '\\':
			if tok, ok, done := l.scanEscape(start); done {
				return tok, ok
			}
			continue

		default:
			l.pos++
		}
	}

	if firstQuote != shtypes.QuoteNone && !mixed {
		quote = firstQuote
	} else {
		quote = shtypes.QuoteNone
	}
	return shtypes.Token{Kind: shtypes.TokString, SourceStart: start, SourceLength: l.pos - start, QuoteChar: quote, RedirFd: -1}, true
}

// scanSingleQuoted consumes up to and including the closing ' (escapes
// \\ and \' only). done=true means the caller must return immediately
// with (tok, ok) because the quote was unterminated.
func (l *Lexer) scanSingleQuoted(start int) (shtypes.Token, bool, bool) {
	for l.pos < len(l.source) {
		c := l.source[l.pos]
		if c == '\\' && l.pos+1 < len(l.source) && (l.source[l.pos+1] == '\\' || l.source[l.pos+1] == '\'') {
			l.pos += 2
			continue
		}
		if c == '\'' {
			l.pos++
			return shtypes.Token{}, false, false
		}
		l.pos++
	}
	return l.unterminated(start, shellerr.CodeUnterminatedQuote)
}

func (l *Lexer) scanDoubleQuoted(start int) (shtypes.Token, bool, bool) {
	for l.pos < len(l.source) {
		c := l.source[l.pos]
		if c == '\\' && l.pos+1 < len(l.source) {
			n := l.source[l.pos+1]
			if n == '\\' || n == '$' || n == '"' {
				l.pos += 2
				continue
			}
		}
		if c == '(' {
			l.pos++
			if tok, ok, done := l.scanSubshell(start); done {
				return tok, ok, true
			}
			continue
		}
		if c == '"' {
			l.pos++
			return shtypes.Token{}, false, false
		}
		l.pos++
	}
	return l.unterminated(start, shellerr.CodeUnterminatedQuote)
}

// scanSubshell consumes a balanced (...) region, honoring nested quotes
// and nested parens.
func (l *Lexer) scanSubshell(start int) (shtypes.Token, bool, bool) {
	depth := 1
	for l.pos < len(l.source) && depth > 0 {
		c := l.source[l.pos]
		switch c {
		case '(':
			depth++
			l.pos++
		case ')':
			depth--
			l.pos++
		case '\'':
			l.pos++
			for l.pos < len(l.source) && l.source[l.pos] != '\'' {
				if l.source[l.pos] == '\\' && l.pos+1 < len(l.source) {
					l.pos++
				}
				l.pos++
			}
			if l.pos < len(l.source) {
				l.pos++
			}
		case '"':
			l.pos++
			for l.pos < len(l.source) && l.source[l.pos] != '"' {
				if l.source[l.pos] == '\\' && l.pos+1 < len(l.source) {
					l.pos++
				}
				l.pos++
			}
			if l.pos < len(l.source) {
				l.pos++
			}
		default:
			l.pos++
		}
	}
	if depth > 0 {
		return l.unterminated(start, shellerr.CodeUnterminatedSubshell)
	}
	return shtypes.Token{}, false, false
}

// scanEscape consumes one backslash escape sequence outside quotes,
// validating numeric-value escapes per spec.md §4.A.
func (l *Lexer) scanEscape(start int) (shtypes.Token, bool, bool) {
	escStart := l.pos
	l.pos++ // consume '\\'
	if l.pos >= len(l.source) {
		return l.unterminated(start, shellerr.CodeUnterminatedEscape)
	}
	c := l.source[l.pos]
	switch c {
	case 'x', 'X':
		return l.scanHexEscape(start, escStart, 2, 0xFF)
	case 'u':
		return l.scanHexEscape(start, escStart, 4, 0xFFFF)
	case 'U':
		return l.scanHexEscape(start, escStart, 8, 0x10FFFF)
	case '0':
		return l.scanOctalEscape(start)
	case 'c':
		l.pos++
		if l.pos >= len(l.source) {
			return l.unterminated(start, shellerr.CodeUnterminatedEscape)
		}
		l.pos++
		return shtypes.Token{}, false, false
	default:
		l.pos++
		return shtypes.Token{}, false, false
	}
}

func (l *Lexer) scanHexEscape(start, escStart, maxDigits, maxValue int) (shtypes.Token, bool, bool) {
	l.pos++ // consume x/X/u/U
	digitsStart := l.pos
	for l.pos < len(l.source) && l.pos-digitsStart < maxDigits && isHexDigit(l.source[l.pos]) {
		l.pos++
	}
	if l.pos == digitsStart {
		return l.errorTokenDone(start, l.pos-start, shellerr.CodeInvalidEscapeValue, "escape with no hex digits")
	}
	v, _ := strconv.ParseInt(l.source[digitsStart:l.pos], 16, 64)
	if int(v) > maxValue {
		return l.errorTokenDone(start, l.pos-start, shellerr.CodeInvalidEscapeValue, "escape value exceeds maximum")
	}
	return shtypes.Token{}, false, false
}

func (l *Lexer) scanOctalEscape(start int) (shtypes.Token, bool, bool) {
	l.pos++ // consume '0'
	digitsStart := l.pos
	for l.pos < len(l.source) && l.pos-digitsStart < 3 && l.source[l.pos] >= '0' && l.source[l.pos] <= '7' {
		l.pos++
	}
	return shtypes.Token{}, false, false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) unterminated(start int, code shellerr.Code) (shtypes.Token, bool, bool) {
	if l.flags&AcceptUnfinished != 0 {
		ek := shtypes.TokErrUnterminatedQuote
		switch code {
		case shellerr.CodeUnterminatedSubshell:
			ek = shtypes.TokErrUnterminatedSubshell
		case shellerr.CodeUnterminatedEscape:
			ek = shtypes.TokErrUnterminatedEscape
		}
		l.pos = len(l.source)
		return shtypes.Token{Kind: shtypes.TokString, SourceStart: start, SourceLength: l.pos - start, ErrorKind: ek, RedirFd: -1}, true, true
	}
	return l.errorTokenDone(start, len(l.source)-start, code, "unterminated construct")
}

func (l *Lexer) errorToken(start, length int, code shellerr.Code, msg string) (shtypes.Token, bool) {
	tok, ok, _ := l.errorTokenDone(start, length, code, msg)
	return tok, ok
}

func (l *Lexer) errorTokenDone(start, length int, code shellerr.Code, msg string) (shtypes.Token, bool, bool) {
	l.pos = start + length
	l.lastErr = shellerr.New(shellerr.KindTokenizer, code, msg, start, length)
	if l.flags&SquashErrors != 0 {
		l.sawError = false
	} else {
		l.sawError = true
	}
	return shtypes.Token{Kind: shtypes.TokError, SourceStart: start, SourceLength: length, ErrorKind: tokErrKindOf(code), RedirFd: -1}, true, true
}

func tokErrKindOf(code shellerr.Code) shtypes.TokenizerErrorKind {
	switch code {
	case shellerr.CodeUnterminatedQuote:
		return shtypes.TokErrUnterminatedQuote
	case shellerr.CodeUnterminatedSubshell:
		return shtypes.TokErrUnterminatedSubshell
	case shellerr.CodeUnterminatedEscape:
		return shtypes.TokErrUnterminatedEscape
	case shellerr.CodeInvalidEscapeValue:
		return shtypes.TokErrInvalidEscapeValue
	default:
		return shtypes.TokErrNone
	}
}

// LastError returns the most recent tokenizer error, if any.
func (l *Lexer) LastError() *shellerr.Error { return l.lastErr }

// LineNumberOfOffset returns the 1-based line containing offset within
// the lexer's source.
func (l *Lexer) LineNumberOfOffset(offset int) int {
	if offset > len(l.source) {
		offset = len(l.source)
	}
	return 1 + strings.Count(l.source[:offset], "\n")
}

// Tokenize fully drains a Lexer, returning every token produced.
func Tokenize(source string, flags Flags) []shtypes.Token {
	l := New(source, flags)
	var out []shtypes.Token
	for {
		tok, ok := l.Next()
		if !ok {
			break
		}
		out = append(out, tok)
	}
	return out
}
