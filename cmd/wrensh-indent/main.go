// Command wrensh-indent reads script source on stdin and writes a
// canonically re-indented, canonically spaced version to stdout,
// grounded on the teacher's small single-purpose cmd/ tools in its
// main package layout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
	"github.com/diillson/wrensh/internal/version"
)

const indentUnit = "    "

// blockOpeners increase the indent level after their terminating end
// token; blockClosers decrease it on their own line, per spec.md §6.
var blockOpeners = map[string]bool{
	"if": true, "while": true, "for": true, "switch": true,
	"function": true, "begin": true, "case": true,
}

var blockClosers = map[string]bool{
	"else": true, "case": true, "end": true,
}

func main() {
	noIndent := flag.Bool("no-indent", false, "canonicalize spacing only, leave indentation alone")
	showVersion := flag.Bool("version", false, "print the version and exit")
	showHelp := flag.Bool("help", false, "print usage and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("wrensh-indent"))
		return
	}
	if *showHelp {
		fmt.Println("usage: wrensh-indent [--no-indent] < script > script")
		flag.PrintDefaults()
		return
	}

	src, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wrensh-indent:", err)
		os.Exit(1)
	}

	out, err := Indent(string(src), *noIndent)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wrensh-indent:", err)
		os.Exit(1)
	}

	w := bufio.NewWriter(os.Stdout)
	if _, err := w.WriteString(out); err != nil {
		fmt.Fprintln(os.Stderr, "wrensh-indent:", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "wrensh-indent:", err)
		os.Exit(1)
	}
}

// Indent re-lexes src and reprints it with a single space between
// tokens on a logical line, one blank-free newline per statement
// terminator, and (unless noIndent) one indentUnit per nesting level
// opened by an if/while/for/switch/function/begin/case and closed by a
// matching else/case/end. With noIndent, a line that starts a source
// line keeps that line's original leading spaces and tabs.
func Indent(src string, noIndent bool) (string, error) {
	toks := token.Tokenize(src, token.ShowComments|token.AcceptUnfinished)

	var b strings.Builder
	depth := 0
	atLineStart := true
	needSpace := false

	writeIndent := func(start int) {
		if noIndent {
			lineStart := strings.LastIndexByte(src[:start], '\n') + 1
			if lead := src[lineStart:start]; strings.Trim(lead, " \t") == "" {
				b.WriteString(lead)
			}
			return
		}
		for i := 0; i < depth; i++ {
			b.WriteString(indentUnit)
		}
	}

	for _, tok := range toks {
		text := tok.Text(src)

		switch tok.Kind {
		case shtypes.TokEnd:
			b.WriteByte('\n')
			atLineStart = true
			needSpace = false
			continue
		case shtypes.TokComment:
			if atLineStart {
				writeIndent(tok.SourceStart)
			} else if needSpace {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimRight(text, " \t"))
			atLineStart = false
			needSpace = false
			continue
		}

		word := unquotedLeading(text)
		isFirstOnLine := atLineStart
		if isFirstOnLine {
			if !noIndent && blockClosers[word] {
				if depth > 0 {
					depth--
				}
			}
			writeIndent(tok.SourceStart)
		} else if needSpace {
			b.WriteByte(' ')
		}

		b.WriteString(text)
		atLineStart = false
		needSpace = true

		if !noIndent && isFirstOnLine && tok.Kind == shtypes.TokString && blockOpeners[word] {
			depth++
		}
	}

	if !atLineStart {
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func unquotedLeading(text string) string {
	if len(text) >= 2 && (text[0] == '\'' || text[0] == '"') && text[len(text)-1] == text[0] {
		return text[1 : len(text)-1]
	}
	return text
}
