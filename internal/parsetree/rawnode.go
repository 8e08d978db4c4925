package parsetree

import "github.com/diillson/wrensh/internal/shtypes"

// rawNode is the parser's working representation: an ordinary Go tree
// built by straightforward recursive descent. Flatten (in flatten.go)
// converts it to the shtypes.Tree flat vector the rest of the core
// consumes, laying siblings out as a contiguous run so shtypes.ParseNode's
// "children occupy [child_start, child_start+child_count)" invariant
// holds at every level without constraining how the tree is built.
type rawNode struct {
	typ      shtypes.NodeType
	tag      shtypes.Tag
	termKind shtypes.TokenKind
	start    int
	length   int
	children []*rawNode
}

func (n *rawNode) end() int { return n.start + n.length }

// extend grows n's span to cover [start, start+length), used as each
// child/terminal is appended so the parent's span always equals the
// union of what it has consumed so far.
func (n *rawNode) extend(start, length int) {
	end := start + length
	if n.length == 0 && n.start == 0 && len(n.children) == 0 {
		n.start = start
		n.length = end - start
		return
	}
	if start < n.start {
		n.start = start
	}
	if end > n.end() {
		n.length = end - n.start
	}
}

func (n *rawNode) addChild(c *rawNode) {
	n.children = append(n.children, c)
	n.extend(c.start, c.length)
}

func newTerminal(tok shtypes.Token) *rawNode {
	return &rawNode{typ: shtypes.NodeTerminal, termKind: tok.Kind, start: tok.SourceStart, length: tok.SourceLength}
}

func newNode(typ shtypes.NodeType) *rawNode {
	return &rawNode{typ: typ}
}
