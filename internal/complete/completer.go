package complete

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/shtypes"
)

var foldCase = cases.Fold()

// matchPrefix reports whether s has prefix as an exact prefix, and
// separately whether it only matches once both sides are case-folded
// (spec.md §3's Completion.FlagNoCaseMatch: a completion offered only
// because case-sensitive matching found nothing).
func matchPrefix(s, prefix string) (exact, foldedOnly bool) {
	if strings.HasPrefix(s, prefix) {
		return true, false
	}
	return false, strings.HasPrefix(foldCase.String(s), foldCase.String(prefix))
}

// userLookupBudget bounds passwd-entry enumeration for "~" completion,
// spec.md §4.E's "hard wall-clock budget (e.g. 200ms)".
const userLookupBudget = 200 * time.Millisecond

// Completer generates candidates for the token under the cursor. It
// never mutates shell state; ConditionEval lets the caller run a
// completion rule's `condition` script without this package importing
// the executor (same inversion internal/expand uses for Runner).
type Completer struct {
	Env           *env.Snapshot
	Cwd           string
	Rules         *RuleSet
	Functions     func() []string
	ConditionEval func(script string) bool
	NoDescriptions bool
}

// Complete dispatches on the token text and its position within the
// statement to the four trigger rules spec.md §4.E lists.
func (c *Completer) Complete(tree *shtypes.Tree, src string, cursor int) []shtypes.Completion {
	nodeIdx := tree.NodeAtOffset(cursor)
	tok := tree.Nodes[nodeIdx]
	text := tok.Text(src)
	prefix := text
	if cursor-tok.SourceStart >= 0 && cursor-tok.SourceStart <= len(text) {
		prefix = text[:cursor-tok.SourceStart]
	}

	switch {
	case strings.Contains(prefix, "$") && isVariableToken(prefix):
		return c.completeVariable(prefix)
	case strings.HasPrefix(prefix, "~") && !strings.Contains(prefix, "/"):
		return c.completeUser(prefix)
	case isFirstTokenOfStatement(tree, nodeIdx):
		return c.completeCommand(prefix)
	default:
		return c.completeArgument(tree, src, nodeIdx, prefix)
	}
}

func isVariableToken(prefix string) bool {
	i := strings.LastIndexByte(prefix, '$')
	for _, r := range prefix[i+1:] {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func (c *Completer) completeVariable(prefix string) []shtypes.Completion {
	i := strings.LastIndexByte(prefix, '$')
	lead, want := prefix[:i+1], prefix[i+1:]
	var out []shtypes.Completion
	for _, name := range c.Env.Names() {
		if !strings.HasPrefix(name, want) {
			continue
		}
		desc := ""
		if !c.NoDescriptions {
			if v, ok := c.Env.GetScalar(name); ok {
				desc = v
			}
		}
		out = append(out, shtypes.NewCompletion(lead+name, desc, shtypes.FlagReplacesToken))
	}
	return out
}

func (c *Completer) completeUser(prefix string) []shtypes.Completion {
	want := prefix[1:]
	deadline := time.Now().Add(userLookupBudget)
	var out []shtypes.Completion

	data, err := os.ReadFile("/etc/passwd")
	if err != nil {
		if u, uerr := user.Current(); uerr == nil && strings.HasPrefix(u.Username, want) {
			out = append(out, shtypes.NewCompletion("~"+u.Username, u.Name, shtypes.FlagReplacesToken|shtypes.FlagAutoSpace))
		}
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		if time.Now().After(deadline) {
			break
		}
		fields := strings.Split(line, ":")
		if len(fields) < 5 || !strings.HasPrefix(fields[0], want) {
			continue
		}
		out = append(out, shtypes.NewCompletion("~"+fields[0], fields[4], shtypes.FlagReplacesToken|shtypes.FlagAutoSpace))
	}
	return out
}

func isFirstTokenOfStatement(tree *shtypes.Tree, nodeIdx int) bool {
	n := tree.Nodes[nodeIdx]
	for p := n.ParentIndex; p >= 0; p = tree.Nodes[p].ParentIndex {
		parent := tree.Nodes[p]
		if parent.Type == shtypes.NodePlainStatement {
			children := tree.Children(p)
			return len(children) > 0 && nodeAncestorOf(tree, children[0], nodeIdx)
		}
		if p == 0 {
			break
		}
	}
	return false
}

func nodeAncestorOf(tree *shtypes.Tree, ancestor, nodeIdx int) bool {
	for i := nodeIdx; i >= 0; i = tree.Nodes[i].ParentIndex {
		if i == ancestor {
			return true
		}
		if i == 0 {
			break
		}
	}
	return false
}

func (c *Completer) completeCommand(prefix string) []shtypes.Completion {
	var out []shtypes.Completion
	seen := make(map[string]bool)

	if c.Functions != nil {
		for _, name := range c.Functions() {
			if strings.HasPrefix(name, "_") || !strings.HasPrefix(name, prefix) || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, shtypes.NewCompletion(name, "function", shtypes.FlagAutoSpace))
		}
	}
	for _, name := range builtinNames() {
		if !strings.HasPrefix(name, prefix) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, shtypes.NewCompletion(name, "builtin", shtypes.FlagAutoSpace))
	}

	pathVar, _ := c.Env.GetScalar("PATH")
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, prefix) || seen[name] {
				continue
			}
			info, err := e.Info()
			if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
				continue
			}
			seen[name] = true
			out = append(out, shtypes.NewCompletion(name, "command", shtypes.FlagAutoSpace))
		}
	}
	return out
}

// completeArgument looks up the CompletionRule for the command word
// that introduced the current statement and emits option/argument
// completions plus, when the rule allows it, filesystem completions.
func (c *Completer) completeArgument(tree *shtypes.Tree, src string, nodeIdx int, prefix string) []shtypes.Completion {
	command := c.statementCommand(tree, src, nodeIdx)
	var out []shtypes.Completion
	allowFiles := true

	if command != "" && c.Rules != nil {
		if _, ok := c.Rules.Get(command); ok {
			options := c.Rules.Options(command)
			for _, opt := range options {
				if opt.Condition != "" && c.ConditionEval != nil && !c.ConditionEval(opt.Condition) {
					continue
				}
				if opt.NoFiles || opt.ResultMode == shtypes.ResultExclusive || opt.ResultMode == shtypes.ResultNoFiles {
					allowFiles = false
				}
				out = append(out, optionCompletions(opt, prefix)...)
			}
		}
	}

	if allowFiles {
		out = append(out, completeFiles(c.Cwd, prefix)...)
	}
	return out
}

func optionCompletions(opt shtypes.CompletionOption, prefix string) []shtypes.Completion {
	var out []shtypes.Completion
	if opt.Long != "" {
		dash := "--"
		if opt.OldMode {
			dash = "-"
		}
		text := dash + opt.Long
		if exact, foldedOnly := matchPrefix(text, prefix); exact || foldedOnly {
			flags := shtypes.FlagReplacesToken | shtypes.FlagAutoSpace
			if foldedOnly {
				flags |= shtypes.FlagNoCaseMatch
			}
			out = append(out, shtypes.NewCompletion(text, opt.Description, flags))
		}
	}
	if opt.Short != 0 {
		text := "-" + string(opt.Short)
		if strings.HasPrefix(text, prefix) {
			out = append(out, shtypes.NewCompletion(text, opt.Description, shtypes.FlagReplacesToken|shtypes.FlagAutoSpace))
		}
	}
	if opt.ArgPattern != "" {
		for _, word := range strings.Fields(opt.ArgPattern) {
			if exact, foldedOnly := matchPrefix(word, prefix); exact || foldedOnly {
				flags := shtypes.FlagReplacesToken | shtypes.FlagAutoSpace
				if foldedOnly {
					flags |= shtypes.FlagNoCaseMatch
				}
				out = append(out, shtypes.NewCompletion(word, opt.Description, flags))
			}
		}
	}
	return out
}

func completeFiles(cwd, prefix string) []shtypes.Completion {
	dir, base := filepath.Split(prefix)
	lookIn := dir
	if !filepath.IsAbs(lookIn) {
		lookIn = filepath.Join(cwd, dir)
	}
	if lookIn == "" {
		lookIn = cwd
	}
	entries, err := os.ReadDir(lookIn)
	if err != nil {
		return nil
	}
	var out []shtypes.Completion
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), base) {
			continue
		}
		text := dir + e.Name()
		flags := shtypes.FlagReplacesToken | shtypes.FlagAutoSpace
		if e.IsDir() {
			text += "/"
			flags |= shtypes.FlagNoSpace
		}
		out = append(out, shtypes.NewCompletion(text, "", flags))
	}
	return out
}

// statementCommand walks up from nodeIdx to the enclosing
// NodePlainStatement and returns its own first child's text, the
// command word argument completion resolves a CompletionRule against.
func (c *Completer) statementCommand(tree *shtypes.Tree, src string, nodeIdx int) string {
	for i := nodeIdx; i >= 0; i = tree.Nodes[i].ParentIndex {
		if tree.Nodes[i].Type == shtypes.NodePlainStatement {
			children := tree.Children(i)
			if len(children) == 0 {
				return ""
			}
			return unquoteArg(tree.Nodes[children[0]].Text(src))
		}
		if i == 0 {
			break
		}
	}
	return ""
}

func builtinNames() []string {
	return []string{"true", "false", ":", "cd", "pwd", "set", "echo", "status",
		"exit", "break", "continue", "return", "test", "[", "jobs", "wait"}
}

// ValidateOption reports the tri-state spec.md §4.E's option validation
// describes for switchText against command's CompletionRule, honoring
// short-option concatenation (-I/usr/include) and "--long=value" forms.
type OptionValidity int

const (
	OptionUnknown OptionValidity = iota
	OptionValid
	OptionInvalid
)

func (c *Completer) ValidateOption(command, switchText string) (OptionValidity, string) {
	if c.Rules == nil {
		return OptionUnknown, ""
	}
	if _, ok := c.Rules.Get(command); !ok {
		return OptionUnknown, ""
	}
	options := c.Rules.Options(command)
	if strings.HasPrefix(switchText, "--") {
		name, _, _ := strings.Cut(strings.TrimPrefix(switchText, "--"), "=")
		for _, opt := range options {
			if !opt.OldMode && opt.Long == name {
				return OptionValid, ""
			}
		}
		return OptionInvalid, "unknown option: --" + name
	}
	if strings.HasPrefix(switchText, "-") && len(switchText) >= 2 {
		short := switchText[1]
		for _, opt := range options {
			if opt.Short != short {
				continue
			}
			// -I/usr/include: a value concatenated straight onto a
			// parameter-taking short option is still valid.
			if len(switchText) == 2 || opt.RequireParam {
				return OptionValid, ""
			}
			return OptionInvalid, "option does not take a value: -" + string(short)
		}
		return OptionInvalid, "unknown option: -" + string(short)
	}
	return OptionUnknown, ""
}
