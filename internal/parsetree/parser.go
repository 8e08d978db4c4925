// Package parsetree implements the LL(2) recursive-descent parser that
// turns a shtypes.Token stream into the flat shtypes.Tree consumed by
// internal/expand, internal/jobexec, and internal/complete.
package parsetree

import (
	"github.com/diillson/wrensh/internal/shellerr"
	"github.com/diillson/wrensh/internal/shtypes"
)

// Flags controls parser leniency and output shape.
type Flags uint8

const (
	// ContinueAfterError keeps parsing past a syntax error instead of
	// stopping at the first one, accumulating every error found. Used by
	// the highlighting and completion engines, which need a best-effort
	// tree even over broken input.
	ContinueAfterError Flags = 1 << iota
	// AcceptIncomplete tolerates a source string that ends mid-construct
	// (an open "if" with no matching "end", a trailing pipe) without
	// reporting it as an error, producing a partial tree instead. Used
	// for the input loop's "is this command complete" check.
	AcceptIncomplete
	// IncludeComments keeps comment tokens as NodeComment leaves in the
	// JobList they appear in instead of discarding them.
	IncludeComments
)

type Parser struct {
	tokens []shtypes.Token
	src    string
	pos    int
	flags  Flags
	errs   shellerr.List
	fatal  bool

	loopDepth int
	funcDepth int
}

// Parse tokenizes nothing itself: callers run internal/token first (with
// ShowComments set when flags includes IncludeComments) and pass the
// resulting tokens alongside the source they were lexed from.
func Parse(src string, tokens []shtypes.Token, flags Flags) (shtypes.Tree, shellerr.List) {
	p := &Parser{tokens: tokens, src: src, flags: flags}
	root := p.parseJobList()
	if !p.atEnd() && !p.fatal {
		t, _ := p.cur()
		p.addErr(shellerr.CodeUnexpectedToken, "unexpected token", t.SourceStart, t.SourceLength)
	}
	return flatten(root), p.errs
}

func (p *Parser) cur() (shtypes.Token, bool) {
	if p.pos >= len(p.tokens) {
		return shtypes.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *Parser) peek(n int) (shtypes.Token, bool) {
	if p.pos+n >= len(p.tokens) {
		return shtypes.Token{}, false
	}
	return p.tokens[p.pos+n], true
}

func (p *Parser) atEnd() bool {
	_, ok := p.cur()
	return !ok
}

func (p *Parser) advance() shtypes.Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) consumeTerminal() *rawNode {
	return newTerminal(p.advance())
}

func (p *Parser) curIsKeyword(kw string) bool {
	t, ok := p.cur()
	if !ok || t.Kind != shtypes.TokString || t.QuoteChar != shtypes.QuoteNone {
		return false
	}
	return t.Text(p.src) == kw
}

func (p *Parser) matchesAny(keywords []string) bool {
	for _, kw := range keywords {
		if p.curIsKeyword(kw) {
			return true
		}
	}
	return false
}

func (p *Parser) addErr(code shellerr.Code, text string, start, length int) {
	p.errs = append(p.errs, shellerr.New(shellerr.KindSyntax, code, text, start, length))
	if p.flags&ContinueAfterError == 0 {
		p.fatal = true
	}
}

func (p *Parser) expectEnd() *rawNode {
	if t, ok := p.cur(); ok && t.Kind == shtypes.TokEnd {
		return p.consumeTerminal()
	}
	if p.atEnd() && p.flags&AcceptIncomplete != 0 {
		return nil
	}
	start := len(p.src)
	if t, ok := p.cur(); ok {
		start = t.SourceStart
	}
	p.addErr(shellerr.CodeUnexpectedToken, "expected statement terminator", start, 0)
	return nil
}

func (p *Parser) expectKeyword(kw string, code shellerr.Code) *rawNode {
	if p.curIsKeyword(kw) {
		return p.consumeTerminal()
	}
	if p.atEnd() && p.flags&AcceptIncomplete != 0 {
		return nil
	}
	start := len(p.src)
	if t, ok := p.cur(); ok {
		start = t.SourceStart
	}
	p.addErr(code, "expected '"+kw+"'", start, 0)
	return nil
}

// parseJobList = ε | Job JobList | End JobList, stopping at EOF or at
// any of stop (used by block bodies to hand control back to their
// caller at "else"/"case"/"end" without consuming it).
func (p *Parser) parseJobList(stop ...string) *rawNode {
	node := newNode(shtypes.NodeJobList)
	var prevBackground bool
	var havePrev bool

	for !p.atEnd() && !p.fatal {
		if p.matchesAny(stop) {
			break
		}
		t, _ := p.cur()

		switch {
		case t.Kind == shtypes.TokEnd:
			node.addChild(p.consumeTerminal())
			continue
		case t.Kind == shtypes.TokComment:
			if p.flags&IncludeComments != 0 {
				c := newNode(shtypes.NodeComment)
				tok := p.advance()
				c.start, c.length = tok.SourceStart, tok.SourceLength
				node.addChild(c)
			} else {
				p.advance()
			}
			continue
		case p.curIsKeyword("end"):
			tok, _ := p.cur()
			p.addErr(shellerr.CodeUnbalancingEnd, "'end' with no matching block opener", tok.SourceStart, tok.SourceLength)
			node.addChild(p.consumeTerminal())
			continue
		case p.curIsKeyword("else"):
			tok, _ := p.cur()
			p.addErr(shellerr.CodeUnbalancingElse, "'else' with no matching 'if'", tok.SourceStart, tok.SourceLength)
			node.addChild(p.consumeTerminal())
			continue
		case p.curIsKeyword("case"):
			tok, _ := p.cur()
			p.addErr(shellerr.CodeUnbalancingCase, "'case' with no matching 'switch'", tok.SourceStart, tok.SourceLength)
			node.addChild(p.consumeTerminal())
			continue
		}

		job, isBackground := p.parseJob()
		if havePrev && prevBackground {
			if lead := firstBoolTag(job); lead == shtypes.TagBoolAnd || lead == shtypes.TagBoolOr {
				p.addErr(shellerr.CodeBackgroundThenBoolean, "'and'/'or' after a backgrounded job", job.start, 0)
			}
		}
		node.addChild(job)
		prevBackground, havePrev = isBackground, true
	}
	return node
}

// firstBoolTag reports the TagBoolAnd/TagBoolOr/TagBoolNot of a Job's
// leading statement, or TagNone if it isn't a BoolStatement.
func firstBoolTag(job *rawNode) shtypes.Tag {
	if len(job.children) == 0 {
		return shtypes.TagNone
	}
	stmt := job.children[0]
	if stmt.typ != shtypes.NodeBoolStatement {
		return shtypes.TagNone
	}
	return stmt.tag
}

// parseJob = Statement JobCont, JobCont = ε | Pipe Statement JobCont,
// flattened into a single Job node whose children alternate
// statement/pipe-terminal, with an optional trailing Background
// terminal.
func (p *Parser) parseJob() (*rawNode, bool) {
	node := newNode(shtypes.NodeJob)
	idx := 0
	for {
		stmt := p.parseStatement(idx)
		node.addChild(stmt)
		if p.fatal {
			break
		}
		t, ok := p.cur()
		if ok && t.Kind == shtypes.TokPipe {
			node.addChild(p.consumeTerminal())
			idx++
			continue
		}
		break
	}

	background := false
	if t, ok := p.cur(); ok && t.Kind == shtypes.TokBackground {
		node.addChild(p.consumeTerminal())
		background = true
	}

	if idx > 0 {
		checkExecInPipeline(p, node)
	}
	return node, background
}

// checkExecInPipeline reports CodeExecInPipeline for any stage of a
// multi-stage pipeline whose leading word is "exec" — exec replaces the
// calling process image, which cannot be done mid-pipeline.
func checkExecInPipeline(p *Parser, job *rawNode) {
	for _, c := range job.children {
		if c.typ != shtypes.NodeStatement && c.typ != shtypes.NodeDecoratedStatement && c.typ != shtypes.NodeBoolStatement {
			continue
		}
		if leadingCommandText(c, p.src) == "exec" {
			p.errs = append(p.errs, shellerr.New(shellerr.KindSemantic, shellerr.CodeExecInPipeline, "'exec' cannot appear in a pipeline", c.start, c.length))
		}
	}
}

// leadingCommandText unwraps BoolStatement/DecoratedStatement down to
// the PlainStatement's command-name terminal.
func leadingCommandText(n *rawNode, src string) string {
	switch n.typ {
	case shtypes.NodeBoolStatement:
		if len(n.children) < 2 {
			return ""
		}
		return leadingCommandText(n.children[1], src)
	case shtypes.NodeDecoratedStatement:
		for _, c := range n.children {
			if c.typ == shtypes.NodePlainStatement {
				return leadingCommandText(c, src)
			}
		}
		return ""
	case shtypes.NodePlainStatement:
		if len(n.children) == 0 {
			return ""
		}
		return src[n.children[0].start:n.children[0].end()]
	default:
		return ""
	}
}

func (p *Parser) parseStatement(pipelineIndex int) *rawNode {
	switch {
	case p.curIsKeyword("if"):
		return p.parseIfStatement()
	case p.curIsKeyword("switch"):
		return p.parseSwitchStatement()
	case p.curIsKeyword("for"), p.curIsKeyword("while"), p.curIsKeyword("begin"), p.curIsKeyword("function"):
		return p.parseBlockStatement()
	case p.curIsKeyword("and"), p.curIsKeyword("or"), p.curIsKeyword("not"):
		return p.parseBoolStatement(pipelineIndex)
	case p.curIsKeyword("end"):
		tok, _ := p.cur()
		p.addErr(shellerr.CodeUnbalancingEnd, "'end' with no matching block opener", tok.SourceStart, tok.SourceLength)
		return p.consumeTerminal()
	case p.curIsKeyword("else"):
		tok, _ := p.cur()
		p.addErr(shellerr.CodeUnbalancingElse, "'else' with no matching 'if'", tok.SourceStart, tok.SourceLength)
		return p.consumeTerminal()
	case p.curIsKeyword("case"):
		tok, _ := p.cur()
		p.addErr(shellerr.CodeUnbalancingCase, "'case' with no matching 'switch'", tok.SourceStart, tok.SourceLength)
		return p.consumeTerminal()
	default:
		return p.parseDecoratedStatement()
	}
}

func (p *Parser) parseBoolStatement(pipelineIndex int) *rawNode {
	node := newNode(shtypes.NodeBoolStatement)
	t, _ := p.cur()
	kw := t.Text(p.src)
	switch kw {
	case "and":
		node.tag = shtypes.TagBoolAnd
	case "or":
		node.tag = shtypes.TagBoolOr
	case "not":
		node.tag = shtypes.TagBoolNot
	}
	node.addChild(p.consumeTerminal())
	if kw != "not" && pipelineIndex > 0 {
		p.errs = append(p.errs, shellerr.New(shellerr.KindSemantic, shellerr.CodeBooleanInPipeline, "'"+kw+"' cannot appear mid-pipeline", t.SourceStart, t.SourceLength))
	}
	if p.fatal {
		return node
	}
	node.addChild(p.parseStatement(pipelineIndex))
	return node
}

func (p *Parser) parseDecoratedStatement() *rawNode {
	node := newNode(shtypes.NodeDecoratedStatement)
	node.tag = shtypes.TagDecorationNone

	if p.curIsKeyword("command") || p.curIsKeyword("builtin") {
		kwTok, _ := p.cur()
		kwText := kwTok.Text(p.src)
		nextIsHelp := false
		if nt, ok := p.peek(1); ok && nt.Kind == shtypes.TokString {
			s := nt.Text(p.src)
			nextIsHelp = s == "--help" || s == "-h"
		}
		if !nextIsHelp {
			node.addChild(p.consumeTerminal())
			if kwText == "command" {
				node.tag = shtypes.TagDecorationCommand
			} else {
				node.tag = shtypes.TagDecorationBuiltin
			}
		}
	}

	plain := p.parsePlainStatement()
	node.addChild(plain)

	if len(plain.children) > 0 {
		name := p.src[plain.children[0].start:plain.children[0].end()]
		switch name {
		case "break":
			if p.loopDepth == 0 {
				p.errs = append(p.errs, shellerr.New(shellerr.KindSemantic, shellerr.CodeBreakOutsideLoop, "'break' outside a loop", plain.start, plain.length))
			}
		case "continue":
			if p.loopDepth == 0 {
				p.errs = append(p.errs, shellerr.New(shellerr.KindSemantic, shellerr.CodeContinueOutsideLoop, "'continue' outside a loop", plain.start, plain.length))
			}
		case "return":
			if p.funcDepth == 0 {
				p.errs = append(p.errs, shellerr.New(shellerr.KindSemantic, shellerr.CodeReturnOutsideFunction, "'return' outside a function", plain.start, plain.length))
			}
		}
	}
	return node
}

func (p *Parser) parsePlainStatement() *rawNode {
	node := newNode(shtypes.NodePlainStatement)
	t, ok := p.cur()
	if !ok || t.Kind != shtypes.TokString {
		if p.atEnd() && p.flags&AcceptIncomplete != 0 {
			return node
		}
		start := len(p.src)
		if ok {
			start = t.SourceStart
		}
		p.addErr(shellerr.CodeUnexpectedToken, "expected a command name", start, 0)
		return node
	}
	node.addChild(p.consumeTerminal())
	node.addChild(p.parseArgsOrRedirs())
	return node
}

// parseArgsOrRedirs consumes String and redirection tokens until a
// token kind that can't start either (End/Pipe/Background/comment/EOF).
func (p *Parser) parseArgsOrRedirs() *rawNode {
	node := newNode(shtypes.NodeArgOrRedirList)
	for {
		t, ok := p.cur()
		if !ok {
			break
		}
		switch t.Kind {
		case shtypes.TokString:
			arg := newNode(shtypes.NodeArgument)
			tok := p.advance()
			arg.start, arg.length = tok.SourceStart, tok.SourceLength
			node.addChild(arg)
		case shtypes.TokRedirectOut, shtypes.TokRedirectAppend, shtypes.TokRedirectIn,
			shtypes.TokRedirectFd, shtypes.TokRedirectNoClobber:
			node.addChild(p.parseRedirection())
		default:
			return node
		}
	}
	return node
}

// parseRedirection wraps the redirect operator token together with its
// target word. The operator's exact mode/fd is re-derived from its text
// by internal/jobexec when building a shtypes.Redirection, since the
// flat tree's terminal nodes carry only a TokenKind, not the tokenizer's
// richer Token.RedirFd field.
func (p *Parser) parseRedirection() *rawNode {
	node := newNode(shtypes.NodeRedirection)
	opTok, _ := p.cur()
	node.addChild(p.consumeTerminal())
	if t, ok := p.cur(); ok && t.Kind == shtypes.TokString {
		target := newNode(shtypes.NodeArgument)
		tok := p.advance()
		target.start, target.length = tok.SourceStart, tok.SourceLength
		node.addChild(target)
	} else {
		p.addErr(shellerr.CodeGenericSyntax, "redirection missing target", opTok.SourceStart, opTok.SourceLength)
	}
	return node
}

func (p *Parser) parseArgList() *rawNode {
	node := newNode(shtypes.NodeArgumentList)
	for {
		t, ok := p.cur()
		if !ok || t.Kind != shtypes.TokString {
			break
		}
		arg := newNode(shtypes.NodeArgument)
		tok := p.advance()
		arg.start, arg.length = tok.SourceStart, tok.SourceLength
		node.addChild(arg)
	}
	return node
}

// parseBlockStatement = BlockHeader End JobList "end" ArgsOrRedirs.
func (p *Parser) parseBlockStatement() *rawNode {
	node := newNode(shtypes.NodeBlockStatement)
	header := p.parseBlockHeader()
	node.addChild(header)

	switch header.tag {
	case shtypes.TagHeaderFor, shtypes.TagHeaderWhile:
		p.loopDepth++
		defer func() { p.loopDepth-- }()
	case shtypes.TagHeaderFunction:
		p.funcDepth++
		defer func() { p.funcDepth-- }()
	}

	if e := p.expectEnd(); e != nil {
		node.addChild(e)
	}
	body := p.parseJobList("end")
	node.addChild(body)
	if e := p.expectKeyword("end", shellerr.CodeUnexpectedToken); e != nil {
		node.addChild(e)
	}
	node.addChild(p.parseArgsOrRedirs())
	return node
}

func (p *Parser) parseBlockHeader() *rawNode {
	node := newNode(shtypes.NodeBlockHeader)
	switch {
	case p.curIsKeyword("for"):
		node.tag = shtypes.TagHeaderFor
		node.addChild(p.consumeTerminal())
		if t, ok := p.cur(); ok && t.Kind == shtypes.TokString {
			v := newNode(shtypes.NodeArgument)
			tok := p.advance()
			v.start, v.length = tok.SourceStart, tok.SourceLength
			node.addChild(v)
		} else {
			p.addErr(shellerr.CodeUnexpectedToken, "expected a loop variable name", node.start, 0)
		}
		if e := p.expectKeyword("in", shellerr.CodeUnexpectedToken); e != nil {
			node.addChild(e)
		}
		node.addChild(p.parseArgsOrRedirs())
	case p.curIsKeyword("while"):
		node.tag = shtypes.TagHeaderWhile
		node.addChild(p.consumeTerminal())
		if !p.fatal {
			node.addChild(p.parseStatement(0))
		}
	case p.curIsKeyword("begin"):
		node.tag = shtypes.TagHeaderBegin
		node.addChild(p.consumeTerminal())
	case p.curIsKeyword("function"):
		node.tag = shtypes.TagHeaderFunction
		node.addChild(p.consumeTerminal())
		if t, ok := p.cur(); ok && t.Kind == shtypes.TokString {
			v := newNode(shtypes.NodeArgument)
			tok := p.advance()
			v.start, v.length = tok.SourceStart, tok.SourceLength
			node.addChild(v)
		} else {
			p.addErr(shellerr.CodeUnexpectedToken, "expected a function name", node.start, 0)
		}
		node.addChild(p.parseArgList())
	}
	return node
}

// parseIfStatement = IfClause ElseClause "end".
func (p *Parser) parseIfStatement() *rawNode {
	node := newNode(shtypes.NodeIfStatement)
	node.addChild(p.parseIfClause())
	if elseC := p.parseElseClause(); elseC != nil {
		node.addChild(elseC)
	}
	if e := p.expectKeyword("end", shellerr.CodeUnexpectedToken); e != nil {
		node.addChild(e)
	}
	return node
}

// parseIfClause = "if" Job End JobList.
func (p *Parser) parseIfClause() *rawNode {
	node := newNode(shtypes.NodeIfClause)
	node.addChild(p.consumeTerminal()) // "if"
	if !p.fatal {
		cond, _ := p.parseJob()
		node.addChild(cond)
	}
	if e := p.expectEnd(); e != nil {
		node.addChild(e)
	}
	node.addChild(p.parseJobList("else", "end"))
	return node
}

// parseElseClause = ε | "else" ElseCont.
func (p *Parser) parseElseClause() *rawNode {
	if !p.curIsKeyword("else") {
		return nil
	}
	node := newNode(shtypes.NodeElseClause)
	node.addChild(p.consumeTerminal())
	node.addChild(p.parseElseContinuation())
	return node
}

// parseElseContinuation = IfClause ElseClause | End JobList.
func (p *Parser) parseElseContinuation() *rawNode {
	node := newNode(shtypes.NodeElseContinuation)
	if p.curIsKeyword("if") {
		node.addChild(p.parseIfClause())
		if nested := p.parseElseClause(); nested != nil {
			node.addChild(nested)
		}
		return node
	}
	if e := p.expectEnd(); e != nil {
		node.addChild(e)
	}
	node.addChild(p.parseJobList("end"))
	return node
}

// parseSwitchStatement = "switch" string End CaseItemList "end".
func (p *Parser) parseSwitchStatement() *rawNode {
	node := newNode(shtypes.NodeSwitchStatement)
	node.addChild(p.consumeTerminal()) // "switch"
	if t, ok := p.cur(); ok && t.Kind == shtypes.TokString {
		subj := newNode(shtypes.NodeArgument)
		tok := p.advance()
		subj.start, subj.length = tok.SourceStart, tok.SourceLength
		node.addChild(subj)
	} else {
		p.addErr(shellerr.CodeUnexpectedToken, "expected a switch subject", node.start, 0)
	}
	if e := p.expectEnd(); e != nil {
		node.addChild(e)
	}
	node.addChild(p.parseCaseItemList())
	if e := p.expectKeyword("end", shellerr.CodeUnexpectedToken); e != nil {
		node.addChild(e)
	}
	return node
}

func (p *Parser) parseCaseItemList() *rawNode {
	node := newNode(shtypes.NodeCaseItemList)
	for p.curIsKeyword("case") && !p.fatal {
		node.addChild(p.parseCaseItem())
	}
	return node
}

// parseCaseItem = "case" ArgList End JobList.
func (p *Parser) parseCaseItem() *rawNode {
	node := newNode(shtypes.NodeCaseItem)
	node.addChild(p.consumeTerminal()) // "case"
	node.addChild(p.parseArgList())
	if e := p.expectEnd(); e != nil {
		node.addChild(e)
	}
	node.addChild(p.parseJobList("case", "end"))
	return node
}
