// Package complete implements the completion and highlighting engine
// (spec.md §4.E): computing color spans for a source string, proposing
// completions at a cursor position, and the autosuggestion and
// insertion logic that sit on top of both.
package complete

import (
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/diillson/wrensh/internal/shtypes"
)

// RuleSet is the process-wide command -> CompletionRule table. Per
// spec.md §4.E it is guarded by two locks taken in a fixed order: setMu
// (insertion/deletion of whole rules) before entryMu (mutation of
// options within one already-present rule), so a goroutine that only
// needs to read/modify one rule's options never blocks a concurrent
// rule registration for an unrelated command and vice versa without a
// consistent order.
type RuleSet struct {
	setMu   sync.RWMutex
	entryMu sync.RWMutex
	rules   map[string]*shtypes.CompletionRule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]*shtypes.CompletionRule)}
}

// Register installs or replaces the rule for command, taking only
// setMu since the whole entry is swapped atomically.
func (rs *RuleSet) Register(rule *shtypes.CompletionRule) {
	rs.setMu.Lock()
	defer rs.setMu.Unlock()
	rs.rules[rule.Command] = rule
}

func (rs *RuleSet) Remove(command string) {
	rs.setMu.Lock()
	defer rs.setMu.Unlock()
	delete(rs.rules, command)
}

func (rs *RuleSet) Get(command string) (*shtypes.CompletionRule, bool) {
	rs.setMu.RLock()
	defer rs.setMu.RUnlock()
	r, ok := rs.rules[command]
	return r, ok
}

func (rs *RuleSet) Commands() []string {
	rs.setMu.RLock()
	defer rs.setMu.RUnlock()
	out := make([]string, 0, len(rs.rules))
	for c := range rs.rules {
		out = append(out, c)
	}
	return out
}

// AddOption inserts or replaces (by CompletionOption.Key) one option
// within command's rule, taking setMu first (to find/create the rule)
// and only then entryMu (to mutate its Options slice), honoring the
// fixed lock order spec.md §4.E requires.
func (rs *RuleSet) AddOption(command string, matchesPath bool, opt shtypes.CompletionOption) {
	rs.setMu.Lock()
	rule, ok := rs.rules[command]
	if !ok {
		rule = &shtypes.CompletionRule{Command: command, MatchesPath: matchesPath}
		rs.rules[command] = rule
	}
	rs.setMu.Unlock()

	rs.entryMu.Lock()
	defer rs.entryMu.Unlock()
	for i, existing := range rule.Options {
		if existing.Key() == opt.Key() {
			rule.Options[i] = opt
			return
		}
	}
	rule.Options = append(rule.Options, opt)
}

// Options returns a copy of command's options, safe to range over
// without holding entryMu.
func (rs *RuleSet) Options(command string) []shtypes.CompletionOption {
	rs.setMu.RLock()
	rule, ok := rs.rules[command]
	rs.setMu.RUnlock()
	if !ok {
		return nil
	}
	rs.entryMu.RLock()
	defer rs.entryMu.RUnlock()
	out := make([]shtypes.CompletionOption, len(rule.Options))
	copy(out, rule.Options)
	return out
}

// Dump serializes every registered rule to YAML, command-sorted, for
// the `wrensh --dump-rules` debug flag.
func (rs *RuleSet) Dump() ([]byte, error) {
	rs.setMu.RLock()
	commands := make([]string, 0, len(rs.rules))
	rules := make(map[string]*shtypes.CompletionRule, len(rs.rules))
	for c, r := range rs.rules {
		commands = append(commands, c)
		rules[c] = r
	}
	rs.setMu.RUnlock()

	rs.entryMu.RLock()
	defer rs.entryMu.RUnlock()
	sort.Strings(commands)
	ordered := make([]*shtypes.CompletionRule, 0, len(commands))
	for _, c := range commands {
		ordered = append(ordered, rules[c])
	}
	return yaml.Marshal(ordered)
}
