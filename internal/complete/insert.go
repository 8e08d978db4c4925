package complete

import "strings"

// specialChars are bytes that force escaping when inserted into an
// unquoted token, per spec.md §4.E's insertion rules.
const specialChars = " \t\n'\"$*?[]()#|&;<>^~{}\\"

// Insert applies completion c to line at cursor, given the token
// [tokenStart, tokenEnd) under the cursor and its surrounding quote (0
// for unquoted). It returns the new line and the new cursor position.
func Insert(line string, tokenStart, tokenEnd int, quote byte, c ShellCompletion) (string, int) {
	text := c.Text
	noSpace := c.NoSpace

	var replaceStart, replaceEnd int
	if c.ReplacesToken {
		replaceStart, replaceEnd = tokenStart, tokenEnd
	} else {
		replaceStart, replaceEnd = tokenEnd, tokenEnd
	}

	inserted := escapeForInsertion(text, quote)
	closeQuote := ""
	if quote != 0 && !strings.HasSuffix(inserted, string(quote)) {
		closeQuote = string(quote)
	}

	trailer := ""
	if !noSpace && replaceEnd == len(line) {
		trailer = " "
	}

	newLine := line[:replaceStart] + inserted + closeQuote + trailer + line[replaceEnd:]
	newCursor := replaceStart + len(inserted) + len(closeQuote) + len(trailer)
	return newLine, newCursor
}

// ShellCompletion is the subset of a candidate Insert needs: the
// candidate text plus the ReplacesToken and NoSpace bits, which the
// caller copies from the shtypes.Completion flags.
type ShellCompletion struct {
	Text          string
	ReplacesToken bool
	NoSpace       bool
}

// escapeForInsertion escapes text for the quoting context it is being
// inserted into: none for unquoted text containing no special
// characters, backslash-escaping for unquoted text that needs it, and
// quote-specific escaping inside an existing ' or " token.
func escapeForInsertion(text string, quote byte) string {
	switch quote {
	case '\'':
		return strings.ReplaceAll(strings.ReplaceAll(text, `\`, `\\`), `'`, `\'`)
	case '"':
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)
		return r.Replace(text)
	default:
		if !strings.ContainsAny(text, specialChars) {
			return text
		}
		var b strings.Builder
		for i := 0; i < len(text); i++ {
			if strings.IndexByte(specialChars, text[i]) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(text[i])
		}
		return b.String()
	}
}
