package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diillson/wrensh/internal/shtypes"
)

func kinds(toks []shtypes.Token) []shtypes.TokenKind {
	out := make([]shtypes.TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeRoundTrip(t *testing.T) {
	sources := []string{
		`echo hello world`,
		`echo "a b" 'c d' | grep x`,
		`cmd arg1 2>file.txt >> out.log`,
		`echo (echo inner) done`,
		"echo one; echo two\necho three &",
		`echo "nested (echo sub) call"`,
	}
	for _, src := range sources {
		toks := Tokenize(src, AcceptUnfinished|ShowComments)
		// Whitespace between tokens belongs to no token; every gap in
		// these sources is made of single spaces.
		var rebuilt string
		prev := 0
		for _, tok := range toks {
			rebuilt += strings.Repeat(" ", tok.SourceStart-prev) + tok.Text(src)
			prev = tok.End()
		}
		assert.Equal(t, src, rebuilt, "round-trip failed for %q", src)
	}
}

func TestTokenizeBasicWords(t *testing.T) {
	toks := Tokenize("echo hello world", 0)
	require.Len(t, toks, 3)
	assert.Equal(t, []shtypes.TokenKind{shtypes.TokString, shtypes.TokString, shtypes.TokString}, kinds(toks))
	assert.Equal(t, "echo", toks[0].Text("echo hello world"))
}

func TestTokenizePipeAndBackground(t *testing.T) {
	src := "echo a | grep b &"
	toks := Tokenize(src, 0)
	var gotKinds []shtypes.TokenKind
	for _, tok := range toks {
		gotKinds = append(gotKinds, tok.Kind)
	}
	assert.Contains(t, gotKinds, shtypes.TokPipe)
	assert.Contains(t, gotKinds, shtypes.TokBackground)
}

func TestTokenizeRedirections(t *testing.T) {
	cases := map[string]shtypes.TokenKind{
		"echo a > out":   shtypes.TokRedirectOut,
		"echo a >> out":  shtypes.TokRedirectAppend,
		"echo a < in":    shtypes.TokRedirectIn,
		"echo a >? out":  shtypes.TokRedirectNoClobber,
		"echo a >& 2":    shtypes.TokRedirectFd,
		"echo a 2> out":  shtypes.TokRedirectOut,
	}
	for src, want := range cases {
		toks := Tokenize(src, 0)
		var found bool
		for _, tok := range toks {
			if tok.Kind == want {
				found = true
			}
		}
		assert.True(t, found, "expected kind %v in tokens for %q", want, src)
	}
}

func TestTokenizeCommentsHiddenByDefault(t *testing.T) {
	toks := Tokenize("echo a # a trailing comment", 0)
	for _, tok := range toks {
		assert.NotEqual(t, shtypes.TokComment, tok.Kind)
	}
}

func TestTokenizeCommentsShown(t *testing.T) {
	toks := Tokenize("echo a # a trailing comment", ShowComments)
	var sawComment bool
	for _, tok := range toks {
		if tok.Kind == shtypes.TokComment {
			sawComment = true
		}
	}
	assert.True(t, sawComment)
}

func TestTokenizeUnterminatedQuoteAcceptUnfinished(t *testing.T) {
	src := "'unterminated"
	toks := Tokenize(src, AcceptUnfinished)
	require.Len(t, toks, 1)
	assert.Equal(t, shtypes.TokString, toks[0].Kind)
	assert.Equal(t, shtypes.TokErrUnterminatedQuote, toks[0].ErrorKind)
	assert.Equal(t, 0, toks[0].SourceStart)
	assert.Equal(t, len(src), toks[0].SourceLength)
}

func TestTokenizeUnterminatedQuoteStrict(t *testing.T) {
	toks := Tokenize("'unterminated", 0)
	require.Len(t, toks, 1)
	assert.Equal(t, shtypes.TokError, toks[0].Kind)
}

func TestTokenizeQuoteCharMixedIsNone(t *testing.T) {
	toks := Tokenize(`'a'b`, 0)
	require.Len(t, toks, 1)
	assert.Equal(t, shtypes.QuoteNone, toks[0].QuoteChar)
}

func TestTokenizeQuoteCharUniformSingle(t *testing.T) {
	toks := Tokenize(`'abc'`, 0)
	require.Len(t, toks, 1)
	assert.Equal(t, shtypes.QuoteSingle, toks[0].QuoteChar)
}

func TestTokenizeEscapeSequences(t *testing.T) {
	srcs := []string{`echo \x41`, `echo A`, `echo \U00000041`, `echo \0101`, `echo \cX`, `echo \n`}
	for _, src := range srcs {
		toks := Tokenize(src, 0)
		for _, tok := range toks {
			assert.NotEqual(t, shtypes.TokError, tok.Kind, "unexpected error for %q", src)
		}
	}
}

func TestTokenizeInvalidEscapeValue(t *testing.T) {
	toks := Tokenize(`echo \x`, 0)
	var sawErr bool
	for _, tok := range toks {
		if tok.Kind == shtypes.TokError {
			sawErr = true
			assert.Equal(t, shtypes.TokErrInvalidEscapeValue, tok.ErrorKind)
		}
	}
	assert.True(t, sawErr)
}

func TestLineNumberOfOffset(t *testing.T) {
	l := New("a\nb\nc", 0)
	assert.Equal(t, 1, l.LineNumberOfOffset(0))
	assert.Equal(t, 2, l.LineNumberOfOffset(2))
	assert.Equal(t, 3, l.LineNumberOfOffset(4))
}

func TestTokenizeDigitPrefixedWordVsRedirect(t *testing.T) {
	toks := Tokenize("echo 123abc", 0)
	require.Len(t, toks, 2)
	assert.Equal(t, shtypes.TokString, toks[1].Kind)
	assert.Equal(t, "123abc", toks[1].Text("echo 123abc"))
}
