package sizetree

import (
	"strings"

	"github.com/size-analysis/pkg/model"
)

const javaSourceMarker = ".java:"

// joinDexClasses regroups the children of a formatted file node under
// synthetic Java class nodes. Method symbols ("pkg.Class#method(...)") join
// the class named before the "#"; bare class symbols, which have no space in
// their short name, join their own class node. Everything else stays a direct
// child. Files without dex methods are returned unchanged.
func joinDexClasses(file *model.TreeNode) []*model.TreeNode {
	if _, ok := file.ChildStats[model.SymbolDexMethod]; !ok {
		return file.Children
	}

	kept := make([]*model.TreeNode, 0, len(file.Children))
	var classes []*model.TreeNode
	byID := make(map[string]*model.TreeNode)

	for _, child := range file.Children {
		split := strings.LastIndex(child.IDPath, "#")
		isMethod := split >= child.ShortNameIndex
		isClass := !isMethod && !strings.Contains(child.ShortName(), " ")
		if !isMethod && !isClass {
			kept = append(kept, child)
			continue
		}

		classID := child.IDPath
		if isMethod {
			classID = child.IDPath[:split]
		}

		class, ok := byID[classID]
		if !ok {
			class = newClassNode(child, classID)
			byID[classID] = class
			classes = append(classes, class)
		}
		if isMethod {
			child.ShortNameIndex = split + 1
		}

		class.Children = append(class.Children, child)
		class.Size += child.Size
		class.Flags |= child.Flags
		class.ChildStats.Merge(child.ChildStats)
	}

	for _, class := range classes {
		class.Type = model.ArtifactJavaClass + class.ChildStats.DominantType("")
		model.SortChildren(class.Children)
	}
	return append(kept, classes...)
}

func newClassNode(first *model.TreeNode, classID string) *model.TreeNode {
	shortNameIndex := first.ShortNameIndex
	// Directories already spell out the package.
	if strings.Contains(classID, javaSourceMarker) {
		if dot := strings.LastIndex(classID, ".") + 1; dot > shortNameIndex {
			shortNameIndex = dot
		}
	}
	return &model.TreeNode{
		IDPath:         classID,
		SrcPath:        first.SrcPath,
		Component:      first.Component,
		ShortNameIndex: shortNameIndex,
		Type:           model.ArtifactJavaClass,
		ChildStats:     model.ChildStats{},
		Children:       []*model.TreeNode{},
	}
}
