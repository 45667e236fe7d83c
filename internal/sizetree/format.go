package sizetree

import (
	"strings"

	"github.com/size-analysis/pkg/model"

	apperrors "github.com/size-analysis/pkg/errors"
)

// Format returns a detached copy of n with children expanded depth levels
// deep. Deeper children are left nil, except that a node with at most one
// child is always expanded. Children are sorted by descending absolute size,
// file nodes have their dex methods grouped into classes and no node of the
// copy has a parent.
func (b *Builder) Format(n *Node, depth int) *model.TreeNode {
	out := &model.TreeNode{
		IDPath:         n.idPath,
		SrcPath:        n.srcPath,
		Component:      n.component,
		ShortNameIndex: n.shortNameIndex,
		Size:           n.size,
		Type:           n.typ,
		Flags:          n.flags,
		NumAliases:     n.numAliases,
		ChildStats:     n.childStats.Clone(),
	}
	if out.ChildStats == nil {
		out.ChildStats = model.ChildStats{}
	}

	if depth <= 0 && len(n.children) > 1 {
		return out
	}

	out.Children = make([]*model.TreeNode, 0, len(n.children))
	for _, c := range n.children {
		out.Children = append(out.Children, b.Format(c, depth-1))
	}
	if n.kind() == model.ArtifactFile {
		out.Children = joinDexClasses(out)
	}
	model.SortChildren(out.Children)
	return out
}

// Open formats the node at idPath. Java class nodes only exist in formatted
// output, so a miss falls back to formatting the closest file and picking
// the class out of its children.
func (b *Builder) Open(idPath string, depth int) (*model.TreeNode, error) {
	n := b.Find(idPath)
	// A bare class symbol shares its id path with the class node wrapping it.
	if n == nil || (n.IsLeaf() && n.parent != nil && n.parent.kind() == model.ArtifactFile) {
		file := n
		if file == nil {
			file = b.deepest(idPath)
		} else {
			file = n.parent
		}
		if class := b.openClass(file, idPath, depth); class != nil {
			return class, nil
		}
	}
	if n != nil {
		return b.Format(n, depth), nil
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "no node at "+idPath)
}

func (b *Builder) openClass(file *Node, idPath string, depth int) *model.TreeNode {
	if file.kind() != model.ArtifactFile {
		return nil
	}
	if _, ok := file.childStats[model.SymbolDexMethod]; !ok {
		return nil
	}
	for _, c := range b.Format(file, depth+1).Children {
		if c.IDPath == idPath && strings.HasPrefix(c.Type, model.ArtifactJavaClass) {
			return c
		}
	}
	return nil
}
