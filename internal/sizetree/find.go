package sizetree

import (
	"strings"

	"github.com/size-analysis/internal/options"
)

// Find returns the node with the given id path, or nil. The path is resolved
// segment by segment from the root, where a segment ends at "/", at the
// grouping separator or at the ":" that starts a symbol name.
func (b *Builder) Find(idPath string) *Node {
	if idPath == b.root.idPath {
		return b.root
	}
	return b.find(b.root, idPath)
}

func (b *Builder) find(n *Node, idPath string) *Node {
	for _, c := range n.children {
		if c.idPath == idPath {
			return c
		}
	}
	for _, c := range n.children {
		if !b.isAncestorPath(c.idPath, idPath) {
			continue
		}
		if found := b.find(c, idPath); found != nil {
			return found
		}
	}
	return nil
}

// deepest returns the deepest node whose id path is a segment prefix of
// idPath. It never returns nil.
func (b *Builder) deepest(idPath string) *Node {
	n := b.root
	for {
		var next *Node
		for _, c := range n.children {
			if b.isAncestorPath(c.idPath, idPath) {
				next = c
				break
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
}

// isAncestorPath reports whether prefix names a node above idPath.
func (b *Builder) isAncestorPath(prefix, idPath string) bool {
	if prefix == "" || len(prefix) >= len(idPath) || !strings.HasPrefix(idPath, prefix) {
		return false
	}
	rest := idPath[len(prefix):]
	return strings.HasPrefix(rest, options.PathSeparator) ||
		strings.HasPrefix(rest, b.sep) ||
		strings.HasPrefix(rest, ":")
}
