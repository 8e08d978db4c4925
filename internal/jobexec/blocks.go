package jobexec

import (
	"github.com/diillson/wrensh/internal/shellerr"
	"github.com/diillson/wrensh/internal/shtypes"
)

// pgNone is passed to execStatement for single-condition evaluations
// (if/while conditions, switch subjects) that are not themselves a
// pipeline stage running under runPipeline's job-control bookkeeping.
var pgNone *pgroup

func (ex *Executor) execIfStatement(tree *shtypes.Tree, idx int, src string) int {
	children := tree.Children(idx)
	if len(children) == 0 {
		return 0
	}
	clauseIdx := children[0]
	status, ran := ex.tryIfClause(tree, clauseIdx, src, false)
	if ran {
		return status
	}
	for _, ci := range children[1:] {
		if tree.Nodes[ci].Type != shtypes.NodeElseClause {
			continue
		}
		return ex.execElseClause(tree, ci, src)
	}
	return 0
}

// tryIfClause evaluates an IfClause's condition; ran is false if the
// condition was falsy (so the caller should try the next else-if/else).
func (ex *Executor) tryIfClause(tree *shtypes.Tree, idx int, src string, isElseIf bool) (int, bool) {
	children := tree.Children(idx)
	var condIdx, bodyIdx = -1, -1
	for _, ci := range children {
		switch tree.Nodes[ci].Type {
		case shtypes.NodeJob:
			condIdx = ci
		case shtypes.NodeJobList:
			bodyIdx = ci
		}
	}
	if condIdx < 0 {
		return 0, false
	}
	st := &shtypes.IfState{IsElseIfEntry: isElseIf}
	ex.pushBlock(&shtypes.Block{Type: shtypes.BlockIf, If: st})
	cond := ex.execJob(tree, condIdx, src)
	st.ExprEvaluated = true
	ex.popBlock()
	ex.lastStatus = cond

	if cond != 0 {
		return cond, false
	}
	ex.pushBlock(&shtypes.Block{Type: shtypes.BlockIf, If: st})
	defer ex.popBlock()
	if bodyIdx >= 0 {
		return ex.execJobList(tree, bodyIdx, src), true
	}
	return 0, true
}

func (ex *Executor) execElseClause(tree *shtypes.Tree, idx int, src string) int {
	children := tree.Children(idx)
	if len(children) < 2 {
		return 0
	}
	return ex.execElseContinuation(tree, children[1], src)
}

func (ex *Executor) execElseContinuation(tree *shtypes.Tree, idx int, src string) int {
	children := tree.Children(idx)
	for _, ci := range children {
		switch tree.Nodes[ci].Type {
		case shtypes.NodeIfClause:
			status, ran := ex.tryIfClause(tree, ci, src, true)
			if ran {
				return status
			}
		case shtypes.NodeElseClause:
			return ex.execElseClause(tree, ci, src)
		case shtypes.NodeJobList:
			return ex.execJobList(tree, ci, src)
		}
	}
	return 0
}

func (ex *Executor) execSwitchStatement(tree *shtypes.Tree, idx int, src string) int {
	children := tree.Children(idx)
	var subjectIdx, listIdx = -1, -1
	for _, ci := range children {
		n := tree.Nodes[ci]
		if n.Type == shtypes.NodeArgument {
			subjectIdx = ci
		}
		if n.Type == shtypes.NodeCaseItemList {
			listIdx = ci
		}
	}
	if subjectIdx < 0 || listIdx < 0 {
		return 0
	}
	x := ex.newExpander()
	subjectWords, serrs := x.Expand(tree.Nodes[subjectIdx].Text(src))
	if status, abort := ex.wildcardNoMatchStatus(serrs, ex.Stderr); abort {
		return status
	}
	subject := ""
	if len(subjectWords) > 0 {
		subject = subjectWords[0]
	}

	st := &shtypes.SwitchState{Subject: subject}
	ex.pushBlock(&shtypes.Block{Type: shtypes.BlockSwitch, Switch: st})
	defer ex.popBlock()

	status := 0
	for _, caseIdx := range tree.Children(listIdx) {
		if tree.Nodes[caseIdx].Type != shtypes.NodeCaseItem {
			continue
		}
		if st.Matched {
			break
		}
		if matched, s := ex.tryCaseItem(tree, caseIdx, src, subject); matched {
			st.Matched = true
			status = s
		}
	}
	return status
}

func (ex *Executor) tryCaseItem(tree *shtypes.Tree, idx int, src, subject string) (bool, int) {
	children := tree.Children(idx)
	var argListIdx, bodyIdx = -1, -1
	for _, ci := range children {
		switch tree.Nodes[ci].Type {
		case shtypes.NodeArgumentList:
			argListIdx = ci
		case shtypes.NodeJobList:
			bodyIdx = ci
		}
	}
	if argListIdx < 0 {
		return false, 0
	}
	x := ex.newExpander()
	for _, ai := range tree.Children(argListIdx) {
		if tree.Nodes[ai].Type != shtypes.NodeArgument {
			continue
		}
		patterns, perrs := x.Expand(tree.Nodes[ai].Text(src))
		if status, abort := ex.wildcardNoMatchStatus(perrs, ex.Stderr); abort {
			return true, status
		}
		for _, p := range patterns {
			if caseGlobMatch(p, subject) {
				if bodyIdx >= 0 {
					return true, ex.execJobList(tree, bodyIdx, src)
				}
				return true, 0
			}
		}
	}
	return false, 0
}

// caseGlobMatch supports the same '*'/'?' wildcards as file globbing for
// switch-case patterns, fish's documented behavior.
func caseGlobMatch(pattern, s string) bool {
	return globMatchCase([]rune(pattern), []rune(s))
}

func globMatchCase(p, s []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatchCase(p[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

// execBlockStatement runs for/while/begin, or registers a function
// definition (its body is never executed here; it runs later on call).
func (ex *Executor) execBlockStatement(tree *shtypes.Tree, idx int, src string) int {
	children := tree.Children(idx)
	var headerIdx, bodyIdx = -1, -1
	for _, ci := range children {
		switch tree.Nodes[ci].Type {
		case shtypes.NodeBlockHeader:
			headerIdx = ci
		case shtypes.NodeJobList:
			if bodyIdx < 0 {
				bodyIdx = ci
			}
		}
	}
	if headerIdx < 0 {
		return 0
	}
	header := tree.Nodes[headerIdx]
	switch header.Tag {
	case shtypes.TagHeaderFor:
		return ex.execForHeader(tree, headerIdx, bodyIdx, src)
	case shtypes.TagHeaderWhile:
		return ex.execWhileHeader(tree, headerIdx, bodyIdx, src)
	case shtypes.TagHeaderBegin:
		ex.pushBlock(&shtypes.Block{Type: shtypes.BlockBegin})
		defer ex.popBlock()
		if bodyIdx >= 0 {
			return ex.execJobList(tree, bodyIdx, src)
		}
		return 0
	case shtypes.TagHeaderFunction:
		ex.defineFunction(tree, headerIdx, bodyIdx, src)
		return 0
	}
	return 0
}

func (ex *Executor) execForHeader(tree *shtypes.Tree, headerIdx, bodyIdx int, src string) int {
	children := tree.Children(headerIdx)
	var varIdx, itemsIdx = -1, -1
	seenVar := false
	for _, ci := range children {
		n := tree.Nodes[ci]
		if n.Type == shtypes.NodeArgument && !seenVar {
			varIdx = ci
			seenVar = true
			continue
		}
		if n.Type == shtypes.NodeArgOrRedirList {
			itemsIdx = ci
		}
	}
	if varIdx < 0 {
		return 0
	}
	varName := tree.Nodes[varIdx].Text(src)
	var items []string
	if itemsIdx >= 0 {
		var ierrs shellerr.List
		items, ierrs = ex.expandWords(tree, itemsIdx, src)
		if status, abort := ex.wildcardNoMatchStatus(ierrs, ex.Stderr); abort {
			return status
		}
	}

	st := &shtypes.ForState{VarName: varName, Items: items}
	status := 0
	for st.Index = 0; st.Index < len(st.Items); st.Index++ {
		ex.Env.Set(varName, []string{st.Items[st.Index]})
		ex.pushBlock(&shtypes.Block{Type: shtypes.BlockFor, For: st})
		if bodyIdx >= 0 {
			status = ex.execJobList(tree, bodyIdx, src)
		}
		ex.popBlock()
		switch ex.unwind {
		case unwindBreak:
			ex.unwind = unwindNone
			return status
		case unwindContinue:
			ex.unwind = unwindNone
		case unwindReturn:
			return status
		}
		if ex.cancelled {
			return status
		}
	}
	return status
}

func (ex *Executor) execWhileHeader(tree *shtypes.Tree, headerIdx, bodyIdx int, src string) int {
	children := tree.Children(headerIdx)
	var condIdx = -1
	for _, ci := range children {
		switch tree.Nodes[ci].Type {
		case shtypes.NodeDecoratedStatement, shtypes.NodeBoolStatement, shtypes.NodeIfStatement,
			shtypes.NodeSwitchStatement, shtypes.NodeBlockStatement:
			condIdx = ci
		}
	}
	if condIdx < 0 {
		return 0
	}
	status := 0
	for {
		cond := ex.execStatement(tree, condIdx, src, ex.Stdin, ex.Stdout, ex.Stderr, pgNone)
		ex.lastStatus = cond
		if cond != 0 {
			break
		}
		st := &shtypes.WhileState{}
		ex.pushBlock(&shtypes.Block{Type: shtypes.BlockWhile, While: st})
		if bodyIdx >= 0 {
			status = ex.execJobList(tree, bodyIdx, src)
		}
		ex.popBlock()
		switch ex.unwind {
		case unwindBreak:
			ex.unwind = unwindNone
			return status
		case unwindContinue:
			ex.unwind = unwindNone
		case unwindReturn:
			return status
		}
		if ex.cancelled {
			return status
		}
	}
	return status
}
