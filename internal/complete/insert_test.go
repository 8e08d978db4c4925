package complete

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertAppendsAtEndOfLine(t *testing.T) {
	line := "echo "
	newLine, cursor := Insert(line, 5, 5, 0, ShellCompletion{Text: "hello"})
	assert.Equal(t, "echo hello ", newLine)
	assert.Equal(t, len("echo hello "), cursor)
}

func TestInsertReplacesTokenWhenRequested(t *testing.T) {
	line := "echo hel"
	newLine, _ := Insert(line, 5, 8, 0, ShellCompletion{Text: "hello", ReplacesToken: true})
	assert.Equal(t, "echo hello ", newLine)
}

func TestInsertNoSpaceSkipsTrailingSpace(t *testing.T) {
	line := "cd /us"
	newLine, _ := Insert(line, 3, 6, 0, ShellCompletion{Text: "/usr/", ReplacesToken: true, NoSpace: true})
	assert.Equal(t, "cd /usr/", newLine)
}

func TestInsertEscapesSpecialCharsUnquoted(t *testing.T) {
	line := "echo "
	newLine, _ := Insert(line, 5, 5, 0, ShellCompletion{Text: "a file.txt", NoSpace: true})
	assert.Equal(t, `echo a\ file.txt`, newLine)
}

func TestInsertClosesOpenQuote(t *testing.T) {
	line := `echo "hel`
	newLine, _ := Insert(line, 6, 9, '"', ShellCompletion{Text: "hello world", ReplacesToken: true, NoSpace: true})
	assert.Equal(t, `echo "hello world"`, newLine)
}
