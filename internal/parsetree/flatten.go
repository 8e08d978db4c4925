package parsetree

import "github.com/diillson/wrensh/internal/shtypes"

// flatten lays out a rawNode tree into a shtypes.Tree using level-order
// (BFS) placement: a node's direct children are appended to the vector
// as one contiguous batch the moment the node is dequeued, so
// ChildStart/ChildCount always describe a contiguous run regardless of
// how deep any one child's own subtree later turns out to be.
func flatten(root *rawNode) shtypes.Tree {
	var nodes []shtypes.ParseNode
	nodes = append(nodes, toParseNode(root, 0))

	type queued struct {
		n   *rawNode
		idx int
	}
	queue := []queued{{root, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		childStart := len(nodes)
		for _, c := range cur.n.children {
			ci := len(nodes)
			pn := toParseNode(c, cur.idx)
			nodes = append(nodes, pn)
			queue = append(queue, queued{c, ci})
		}
		nodes[cur.idx].ChildStart = childStart
		nodes[cur.idx].ChildCount = len(cur.n.children)
	}

	return shtypes.Tree{Nodes: nodes}
}

func toParseNode(n *rawNode, parent int) shtypes.ParseNode {
	return shtypes.ParseNode{
		Type:         n.typ,
		SourceStart:  n.start,
		SourceLength: n.length,
		ParentIndex:  parent,
		Tag:          n.tag,
		TermKind:     n.termKind,
	}
}
