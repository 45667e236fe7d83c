// Package filter provides the composable symbol predicate applied while a
// size tree is being built.
package filter

import (
	"math"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/size-analysis/pkg/model"
)

// PatternTimeout bounds a single include/exclude match.
const PatternTimeout = 100 * time.Millisecond

// Target is the view of one symbol that predicates are evaluated against.
type Target struct {
	// IDPath is the leaf id, i.e. the grouping path plus ":" plus the symbol name.
	IDPath    string
	SrcPath   string
	Component string
	Type      string
	Flags     uint32
	// Size is the value the leaf will carry: bytes, or the method count in
	// method-count mode.
	Size float64
}

// Predicate reports whether a symbol should be kept.
type Predicate func(t *Target) bool

type namedPredicate struct {
	name string
	fn   Predicate
}

// SymbolFilter is a conjunction of predicates. The zero value keeps
// everything. A SymbolFilter must not be modified once it is shared with a
// builder; Match is safe for concurrent use.
type SymbolFilter struct {
	predicates []namedPredicate
}

// New creates an empty SymbolFilter.
func New() *SymbolFilter {
	return &SymbolFilter{}
}

// Add appends a named predicate.
func (f *SymbolFilter) Add(name string, fn Predicate) *SymbolFilter {
	if fn != nil {
		f.predicates = append(f.predicates, namedPredicate{name: name, fn: fn})
	}
	return f
}

// MinSize keeps symbols whose absolute size is at least min. Non-positive
// thresholds add nothing.
func (f *SymbolFilter) MinSize(min float64) *SymbolFilter {
	if min <= 0 || math.IsNaN(min) {
		return f
	}
	return f.Add("min_size", func(t *Target) bool {
		return math.Abs(t.Size) >= min
	})
}

// Types keeps symbols whose type tag appears in types. An empty string adds
// nothing.
func (f *SymbolFilter) Types(types string) *SymbolFilter {
	if types == "" {
		return f
	}
	set := make(map[string]struct{}, len(types))
	for _, r := range types {
		set[string(r)] = struct{}{}
	}
	return f.Add("type", func(t *Target) bool {
		_, ok := set[t.Type]
		return ok
	})
}

// Flag keeps symbols that carry the given flag bit.
func (f *SymbolFilter) Flag(bit uint32) *SymbolFilter {
	if bit == 0 {
		return f
	}
	return f.Add("flag", func(t *Target) bool {
		return t.Flags&bit != 0
	})
}

// Include keeps symbols whose id path or component matches re. A nil
// pattern adds nothing.
func (f *SymbolFilter) Include(re *regexp2.Regexp) *SymbolFilter {
	if re == nil {
		return f
	}
	return f.Add("include", func(t *Target) bool {
		return matches(re, t)
	})
}

// Exclude drops symbols whose id path or component matches re. A nil
// pattern adds nothing.
func (f *SymbolFilter) Exclude(re *regexp2.Regexp) *SymbolFilter {
	if re == nil {
		return f
	}
	return f.Add("exclude", func(t *Target) bool {
		return !matches(re, t)
	})
}

// Match reports whether every predicate keeps t.
func (f *SymbolFilter) Match(t *Target) bool {
	if f == nil {
		return true
	}
	for _, p := range f.predicates {
		if !p.fn(t) {
			return false
		}
	}
	return true
}

// Len returns the number of active predicates.
func (f *SymbolFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.predicates)
}

// String lists the active predicate names, for logging.
func (f *SymbolFilter) String() string {
	if f.Len() == 0 {
		return "none"
	}
	names := make([]string, len(f.predicates))
	for i, p := range f.predicates {
		names[i] = p.name
	}
	return strings.Join(names, ",")
}

// CompilePattern compiles a JavaScript-syntax regular expression as sent by
// the viewer UI. An empty pattern yields nil and no error.
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = PatternTimeout
	return re, nil
}

// matches treats a timed out match as a miss.
func matches(re *regexp2.Regexp, t *Target) bool {
	if ok, err := re.MatchString(t.IDPath); err == nil && ok {
		return true
	}
	if t.Component == "" {
		return false
	}
	ok, err := re.MatchString(t.Component)
	return err == nil && ok
}

// TargetFor builds the predicate view of a symbol inside a file entry.
func TargetFor(idPath, component string, fe *model.FileEntry, sym *model.SymbolEntry, size float64) *Target {
	return &Target{
		IDPath:    idPath,
		SrcPath:   fe.Path(),
		Component: component,
		Type:      sym.Type,
		Flags:     sym.Flags,
		Size:      size,
	}
}
