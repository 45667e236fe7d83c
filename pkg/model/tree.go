package model

import (
	"math"
	"sort"
)

// ChildStat aggregates the symbols of one type below a node.
type ChildStat struct {
	Size    float64 `json:"size"`
	Count   int     `json:"count"`
	Added   int     `json:"added,omitempty"`
	Removed int     `json:"removed,omitempty"`
	Changed int     `json:"changed,omitempty"`
}

// Add accumulates other into s.
func (s *ChildStat) Add(other *ChildStat) {
	s.Size += other.Size
	s.Count += other.Count
	s.Added += other.Added
	s.Removed += other.Removed
	s.Changed += other.Changed
}

// ChildStats maps a symbol type to its aggregate.
type ChildStats map[string]*ChildStat

// Clone returns a deep copy.
func (cs ChildStats) Clone() ChildStats {
	out := make(ChildStats, len(cs))
	for t, s := range cs {
		c := *s
		out[t] = &c
	}
	return out
}

// Merge adds every entry of other into cs.
func (cs ChildStats) Merge(other ChildStats) {
	for t, s := range other {
		dst, ok := cs[t]
		if !ok {
			dst = &ChildStat{}
			cs[t] = dst
		}
		dst.Add(s)
	}
}

// DominantType returns the type with the largest absolute size. current is
// kept on ties; other candidates are scanned in ascending tag order.
func (cs ChildStats) DominantType(current string) string {
	best := current
	bestSize := -1.0
	if s, ok := cs[current]; ok {
		bestSize = math.Abs(s.Size)
	} else {
		best = ""
	}
	types := make([]string, 0, len(cs))
	for t := range cs {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if abs := math.Abs(cs[t].Size); abs > bestSize {
			best = t
			bestSize = abs
		}
	}
	return best
}

// TreeNode is the detached, transferable form of a tree node. Children is nil
// when the subtree has not been loaded yet.
type TreeNode struct {
	IDPath         string      `json:"idPath"`
	SrcPath        string      `json:"srcPath,omitempty"`
	Component      string      `json:"component,omitempty"`
	ShortNameIndex int         `json:"shortNameIndex"`
	Size           float64     `json:"size"`
	Type           string      `json:"type"`
	Flags          uint32      `json:"flags"`
	NumAliases     int         `json:"numAliases,omitempty"`
	ChildStats     ChildStats  `json:"childStats"`
	Children       []*TreeNode `json:"children"`
	Parent         *TreeNode   `json:"parent"`
}

// ShortName returns the last component of the node's id path.
func (n *TreeNode) ShortName() string {
	if n.ShortNameIndex >= len(n.IDPath) {
		return ""
	}
	return n.IDPath[n.ShortNameIndex:]
}

// Loaded reports whether the node's children were included.
func (n *TreeNode) Loaded() bool {
	return n.Children != nil
}

// Walk visits n and every loaded descendant depth first.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// SortChildren orders children by descending absolute size, keeping insertion
// order for equal sizes.
func SortChildren(children []*TreeNode) {
	sort.SliceStable(children, func(i, j int) bool {
		return math.Abs(children[i].Size) > math.Abs(children[j].Size)
	})
}
