package shtypes

import "strings"

// CompletionFlag is a bitmask of presentation/behavior hints attached to
// a Completion.
type CompletionFlag uint8

const (
	FlagNoSpace CompletionFlag = 1 << iota
	FlagNoCaseMatch
	FlagReplacesToken
	FlagDontEscape
	FlagAutoSpace
)

// Completion is one candidate produced by the completion engine.
// AutoSpace is resolved at construction time: if set and Text ends in
// one of "/=@:" it folds into NoSpace (those suffixes already read as
// "complete" without a trailing space) and the AutoSpace bit itself is
// cleared from the stored flags.
type Completion struct {
	Text        string
	Description string
	Flags       CompletionFlag
}

// NewCompletion builds a Completion, resolving AutoSpace.
func NewCompletion(text, description string, flags CompletionFlag) Completion {
	if flags&FlagAutoSpace != 0 {
		flags &^= FlagAutoSpace
		if len(text) > 0 && strings.ContainsRune("/=@:", rune(text[len(text)-1])) {
			flags |= FlagNoSpace
		}
	}
	return Completion{Text: text, Description: description, Flags: flags}
}

func (c Completion) Has(f CompletionFlag) bool { return c.Flags&f != 0 }
