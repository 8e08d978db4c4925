// Package expand implements the word expander (spec.md §4.C): it turns
// one argument's raw source text into zero or more final argv strings,
// applying command substitution, variable expansion, brace expansion,
// tilde expansion, wildcard expansion, and unescaping in that order,
// while respecting single/double quoting along the way.
package expand

import (
	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/shellerr"
)

// Flags gates individual stages of the pipeline, used by the completion
// engine (which wants tilde/variable but not wildcard or cmdsubst) and
// by the "is this line complete" checker (AcceptIncomplete).
type Flags uint16

const (
	SkipCmdSubst Flags = 1 << iota
	SkipVariables
	SkipBraces
	SkipTilde
	SkipWildcards
	ExecutablesOnly
	DirectoriesOnly
	AcceptIncomplete
	NoDescriptions
)

// Runner executes a command substitution's source and returns its
// captured, newline-split stdout. internal/jobexec supplies the real
// implementation at wiring time; expand never imports jobexec directly,
// which would create an import cycle (jobexec expands process argv,
// expand runs nested commands through jobexec).
type Runner interface {
	RunCaptured(source string) ([]string, error)
}

// Expander holds everything a single Expand call needs: the variable
// table to resolve $name against, the working directory tilde and glob
// expansion are relative to, and the Runner for command substitution.
type Expander struct {
	Env    *env.Snapshot
	Cwd    string
	Runner Runner
	Flags  Flags
}

// Expand turns the source text of one NodeArgument (or NodeRedirection
// target) into its final argv words. errs accumulates non-fatal
// problems (a bad brace, a wildcard with no match) the caller can
// choose to treat as fatal or merely report.
func (x *Expander) Expand(raw string) ([]string, shellerr.List) {
	var errs shellerr.List

	segs := scanQuoteSegments(raw)

	// Stage 1+2: command substitution and variable expansion, run per
	// segment so single-quoted text is never touched.
	words := []string{""}
	for _, seg := range segs {
		var segWords []string
		switch seg.kind {
		case segSingleQuoted:
			segWords = []string{protectGlobChars(unescapeSingleQuoted(seg.text))}
		case segDoubleQuoted:
			s, e := x.expandQuotedScalar(seg.text)
			errs = append(errs, e...)
			segWords = []string{protectGlobChars(s)}
		default:
			s, e := x.expandUnquotedSegment(seg.text)
			errs = append(errs, e...)
			segWords = s
		}
		words = cartesianAppend(words, segWords)
	}

	// Stage 3: brace expansion, over the fully variable/cmdsubst-resolved
	// words (so ~ and * inside a variable's value are not themselves
	// brace-expanded a second time — only literal braces in source text
	// are, since variable substitution results aren't re-scanned for
	// braces here; braces are expanded from the original segment
	// boundaries captured above is intentionally skipped for quoted
	// segments since seg.text there is never re-entered).
	if x.Flags&SkipBraces == 0 {
		var braced []string
		for _, w := range words {
			braced = append(braced, expandBraces(w)...)
		}
		words = braced
	}

	// Stage 4: tilde expansion, only legal at the very start of the
	// original (unexpanded) argument and only outside quotes.
	if x.Flags&SkipTilde == 0 && len(segs) > 0 && segs[0].kind == segUnquoted {
		for i, w := range words {
			words[i] = x.expandTilde(w)
		}
	}

	// Stage 5: wildcard expansion against the filesystem. A glob that
	// matches nothing reports CodeWildcardNoMatch and drops the word,
	// unless AcceptIncomplete is set (the completion engine's live-typing
	// preview, where an as-yet-unmatched glob should still show up as a
	// candidate instead of erroring).
	if x.Flags&SkipWildcards == 0 && containsGlobChar(raw) {
		var globbed []string
		for _, w := range words {
			matches, e := x.expandWildcard(w)
			if len(matches) > 0 {
				globbed = append(globbed, matches...)
				continue
			}
			if e.HasAny() {
				if x.Flags&AcceptIncomplete != 0 {
					globbed = append(globbed, w)
					continue
				}
				errs = append(errs, e...)
				continue
			}
			globbed = append(globbed, w)
		}
		words = globbed
	}

	// Stage 6: unescape. Backslash sequences were already decoded per
	// segment above, except for glob metacharacters, which stage 2 left
	// behind as sentinel code points specifically so stage 5 would treat
	// them as literal instead of wildcards; resolve those back to plain
	// characters now that globbing is done.
	for i, w := range words {
		words[i] = resolveSentinels(w)
	}
	return words, errs
}

func cartesianAppend(prefixes []string, suffixes []string) []string {
	if len(suffixes) == 0 {
		return prefixes
	}
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}
