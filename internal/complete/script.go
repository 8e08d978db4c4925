package complete

import (
	"strings"

	"github.com/diillson/wrensh/internal/shtypes"
)

// completeEntry pairs one parsed `complete` invocation's option with the
// command it targets, defaulting to the autoload file's own name when
// the invocation carries no explicit --command switch.
type completeEntry struct {
	command string
	option  shtypes.CompletionOption
}

// parseCompleteCalls walks tree for top-level `complete ...` invocations
// (spec.md §6's completion-rule file format) and returns one entry per
// declared option. It deliberately reads raw argument text rather than
// running the full word expander: completion-rule files are static
// declarations, not scripts that interpolate shell state.
func parseCompleteCalls(tree *shtypes.Tree, src string, fileCommand string) []completeEntry {
	var out []completeEntry
	walkJobList(tree, 0, src, fileCommand, &out)
	return out
}

func walkJobList(tree *shtypes.Tree, idx int, src, fileCommand string, out *[]completeEntry) {
	for _, ci := range tree.Children(idx) {
		n := tree.Nodes[ci]
		switch n.Type {
		case shtypes.NodeJobList, shtypes.NodeJob, shtypes.NodeJobContinuation, shtypes.NodeStatement:
			walkJobList(tree, ci, src, fileCommand, out)
		case shtypes.NodeDecoratedStatement:
			maybeParseComplete(tree, ci, src, fileCommand, out)
		}
	}
}

func maybeParseComplete(tree *shtypes.Tree, idx int, src, fileCommand string, out *[]completeEntry) {
	plainIdx := -1
	for _, ci := range tree.Children(idx) {
		if tree.Nodes[ci].Type == shtypes.NodePlainStatement {
			plainIdx = ci
			break
		}
	}
	if plainIdx < 0 {
		return
	}
	children := tree.Children(plainIdx)
	if len(children) == 0 || unquoteArg(tree.Nodes[children[0]].Text(src)) != "complete" {
		return
	}

	argsIdx := -1
	if len(children) > 1 && tree.Nodes[children[1]].Type == shtypes.NodeArgOrRedirList {
		argsIdx = children[1]
	}

	var words []string
	if argsIdx >= 0 {
		for _, ci := range tree.Children(argsIdx) {
			n := tree.Nodes[ci]
			if n.Type != shtypes.NodeArgument {
				continue
			}
			words = append(words, unquoteArg(n.Text(src)))
		}
	}
	entries := optionsFromWords(words, fileCommand)
	*out = append(*out, entries...)
}

// optionsFromWords turns one `complete` call's already-tokenized switch
// words into zero or one CompletionOption entries (zero if the call only
// erases a rule, which the autoloader handles via file deletion instead
// of an --erase switch).
func optionsFromWords(words []string, fileCommand string) []completeEntry {
	command := fileCommand
	var opt shtypes.CompletionOption
	haveOption := false
	erase := false

	for i := 0; i < len(words); i++ {
		w := words[i]
		next := func() string {
			if i+1 < len(words) {
				i++
				return words[i]
			}
			return ""
		}
		switch w {
		case "--command", "-c":
			command = next()
		case "--path", "-p":
			next()
		case "--short-option", "-s":
			v := next()
			if len(v) > 0 {
				opt.Short = v[0]
				haveOption = true
			}
		case "--long-option", "-l":
			opt.Long = next()
			haveOption = true
		case "--old-option", "-o":
			opt.Long = next()
			opt.OldMode = true
			haveOption = true
		case "--description", "-d":
			opt.Description = next()
		case "--arguments", "-a":
			opt.ArgPattern = next()
		case "--condition", "-n":
			opt.Condition = next()
		case "--require-parameter", "-r":
			opt.RequireParam = true
		case "--no-files", "-f":
			opt.NoFiles = true
			opt.ResultMode = shtypes.ResultNoFiles
		case "--exclusive", "-x":
			opt.Exclusive = true
			opt.ResultMode = shtypes.ResultExclusive
		case "--erase", "-e":
			erase = true
		}
	}

	if erase || !haveOption {
		return nil
	}
	return []completeEntry{{command: command, option: opt}}
}

// unquoteArg strips a single layer of matching quotes from a raw
// argument, enough for completion-rule files which don't need the full
// expander (no variables, no globs, no command substitution).
func unquoteArg(raw string) string {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1]
		}
	}
	return strings.TrimSpace(raw)
}
