package sizetree

import (
	"math"
	"strings"

	"github.com/size-analysis/internal/options"
	"github.com/size-analysis/pkg/filter"
	"github.com/size-analysis/pkg/model"

	apperrors "github.com/size-analysis/pkg/errors"
)

// Config holds the construction parameters of a Builder.
type Config struct {
	// PathFunc derives the tree path of a file entry.
	PathFunc options.PathFunc
	// Filter selects the symbols that become leaves. Nil keeps everything.
	Filter *filter.SymbolFilter
	// MethodCount makes a leaf's size its method count.
	MethodCount bool
	// Separator is the grouping-specific path separator.
	Separator string
	Meta      *model.Meta
}

// ConfigFromOptions derives a Config from parsed options.
func ConfigFromOptions(opts *options.BuildOptions, meta *model.Meta) Config {
	return Config{
		PathFunc:    opts.PathFunc(),
		Filter:      opts.Filter(),
		MethodCount: opts.MethodCount,
		Separator:   opts.Separator(),
		Meta:        meta,
	}
}

// Builder incrementally builds the tree. Every AddFileEntry keeps the
// aggregate invariants: a node's size, flags and childStats always equal
// the totals over the leaves below it. A Builder is not safe for concurrent
// use; callers serialize writers against readers.
type Builder struct {
	getPath     options.PathFunc
	filter      *filter.SymbolFilter
	methodCount bool
	sep         string
	meta        *model.Meta

	root    *Node
	parents map[string]*Node
	built   bool

	fileEntries int64
	leaves      int64
}

// NewBuilder creates a Builder with an empty root.
func NewBuilder(cfg Config) *Builder {
	sep := cfg.Separator
	if sep == "" {
		sep = options.PathSeparator
	}
	getPath := cfg.PathFunc
	if getPath == nil {
		getPath = func(fe *model.FileEntry, _ *model.Meta) string { return fe.Path() }
	}
	meta := cfg.Meta
	if meta == nil {
		meta = &model.Meta{}
	}

	b := &Builder{
		getPath:     getPath,
		filter:      cfg.Filter,
		methodCount: cfg.MethodCount,
		sep:         sep,
		meta:        meta,
		parents:     make(map[string]*Node),
	}
	b.root = newContainer(sep, len(sep), b.containerType(sep))
	b.parents[""] = b.root
	return b
}

// Root returns the root node.
func (b *Builder) Root() *Node { return b.root }

// Meta returns the stream's meta record.
func (b *Builder) Meta() *model.Meta { return b.meta }

// Separator returns the grouping separator.
func (b *Builder) Separator() string { return b.sep }

// FileEntries returns the number of file entries added so far.
func (b *Builder) FileEntries() int64 { return b.fileEntries }

// Leaves returns the number of symbol leaves in the tree.
func (b *Builder) Leaves() int64 { return b.leaves }

// Built reports whether Build has been called.
func (b *Builder) Built() bool { return b.built }

// AddFileEntry adds one file and its kept symbols. A file whose symbols are
// all filtered out creates no nodes at all.
func (b *Builder) AddFileEntry(fe *model.FileEntry, diffMode bool) error {
	if b.built {
		return apperrors.New(apperrors.CodeInvalidInput, "tree is already built")
	}
	b.fileEntries++

	filePath := b.getPath(fe, b.meta)
	component := b.meta.Component(fe.ComponentIndex)
	srcPath := fe.Path()

	fileNode := newContainer(filePath, b.lastSeparator(filePath)+1, model.ArtifactFile)
	fileNode.srcPath = srcPath
	fileNode.component = component

	for i := range fe.Symbols {
		sym := &fe.Symbols[i]
		count := sym.EffectiveCount(diffMode)
		// Method count mode only tracks symbols whose count changed.
		if b.methodCount && count == 0 {
			continue
		}

		size := sym.Size
		if b.methodCount {
			size = float64(count)
		} else if diffMode && count < 0 {
			size = -math.Abs(size)
		}

		idPath := filePath + ":" + sym.Name
		if !b.filter.Match(filter.TargetFor(idPath, component, fe, sym, size)) {
			continue
		}

		stat := &model.ChildStat{Size: size, Count: count}
		if diffMode {
			switch {
			case count > 0:
				stat.Added = 1
			case count < 0:
				stat.Removed = 1
			default:
				stat.Changed = 1
			}
		}

		leaf := &Node{
			idPath:         idPath,
			srcPath:        srcPath,
			component:      component,
			shortNameIndex: len(filePath) + 1,
			size:           size,
			typ:            sym.Type,
			flags:          sym.Flags,
			numAliases:     sym.Aliases(),
			childStats:     model.ChildStats{sym.Type: stat},
		}
		b.attach(leaf, fileNode)
		b.leaves++
	}

	if len(fileNode.children) > 0 {
		b.attach(fileNode, b.getOrMakeParent(fileNode))
	}
	return nil
}

// attach links child under parent and adds the child's aggregates to every
// ancestor. The walk is O(depth).
func (b *Builder) attach(child, parent *Node) {
	parent.children = append(parent.children, child)
	child.parent = parent

	for n := parent; n != nil; n = n.parent {
		n.size += child.size
		n.flags |= child.flags
		n.childStats.Merge(child.childStats)
		n.typ = n.kind() + n.childStats.DominantType(dominantOf(n))
	}
}

// dominantOf returns the symbol type suffix of a container's type.
func dominantOf(n *Node) string {
	if len(n.typ) < 2 {
		return ""
	}
	return n.typ[1:]
}

// getOrMakeParent returns the parent of child, creating and caching any
// missing ancestors up to the root.
func (b *Builder) getOrMakeParent(child *Node) *Node {
	idx := b.lastSeparator(child.idPath)
	parentPath := ""
	if idx > 0 {
		parentPath = child.idPath[:idx]
	}

	if parent, ok := b.parents[parentPath]; ok {
		return parent
	}

	parent := newContainer(parentPath, b.lastSeparator(parentPath)+1, b.containerType(child.idPath))
	b.parents[parentPath] = parent
	b.attach(parent, b.getOrMakeParent(parent))
	return parent
}

// lastSeparator returns the index of the last "/" or grouping separator.
func (b *Builder) lastSeparator(path string) int {
	idx := strings.LastIndex(path, options.PathSeparator)
	if b.sep != options.PathSeparator {
		if s := strings.LastIndex(path, b.sep); s > idx {
			idx = s
		}
	}
	return idx
}

// containerType returns the kind of the container that childPath hangs
// from: a component when the last split is the grouping separator.
func (b *Builder) containerType(childPath string) string {
	if b.sep != options.PathSeparator &&
		strings.LastIndex(childPath, b.sep) > strings.LastIndex(childPath, options.PathSeparator) {
		return model.ArtifactComponent
	}
	return model.ArtifactDirectory
}

// Build finishes construction. Further AddFileEntry calls fail; Find,
// Format and Open keep working.
func (b *Builder) Build() *Node {
	b.built = true
	b.parents = nil
	b.filter = nil
	b.getPath = nil
	return b.root
}
