// Package sizetree builds the aggregated symbol tree of a size stream and
// renders depth-bounded, detached views of it.
package sizetree

import (
	"github.com/size-analysis/pkg/model"
)

// Node is a node of the live tree. It is owned by its Builder and must only
// be read while the builder is not being written.
type Node struct {
	idPath         string
	srcPath        string
	component      string
	shortNameIndex int
	size           float64
	typ            string
	flags          uint32
	numAliases     int
	childStats     model.ChildStats
	children       []*Node

	// parent is set while the node is attached to a live tree.
	parent *Node
}

func newContainer(idPath string, shortNameIndex int, kind string) *Node {
	return &Node{
		idPath:         idPath,
		shortNameIndex: shortNameIndex,
		typ:            kind,
		childStats:     make(model.ChildStats),
	}
}

// IDPath returns the node's id path.
func (n *Node) IDPath() string { return n.idPath }

// ShortName returns the final path component.
func (n *Node) ShortName() string {
	if n.shortNameIndex >= len(n.idPath) {
		return ""
	}
	return n.idPath[n.shortNameIndex:]
}

// Size returns the aggregated size.
func (n *Node) Size() float64 { return n.size }

// Type returns the node's type string.
func (n *Node) Type() string { return n.typ }

// Flags returns the OR of all leaf flags below the node.
func (n *Node) Flags() uint32 { return n.flags }

// ChildStats returns a copy of the per-type aggregates.
func (n *Node) ChildStats() model.ChildStats { return n.childStats.Clone() }

// NumChildren returns the number of direct children.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i'th child in insertion order.
func (n *Node) Child(i int) *Node { return n.children[i] }

// IsLeaf reports whether the node is a symbol.
func (n *Node) IsLeaf() bool { return len(n.typ) == 1 && model.IsSymbolType(n.typ) }

// kind returns the structural artifact type of a container.
func (n *Node) kind() string {
	if n.typ == "" {
		return ""
	}
	return n.typ[:1]
}

// walk visits n and all descendants depth first.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
