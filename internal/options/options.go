// Package options turns the viewer's query-string options into validated
// build options.
package options

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/size-analysis/pkg/filter"
	"github.com/size-analysis/pkg/model"
)

// Recognized query keys.
const (
	KeyGroupBy     = "group_by"
	KeyMethodCount = "method_count"
	KeyMinSize     = "min_size"
	KeyInclude     = "include"
	KeyExclude     = "exclude"
	KeyType        = "type"
	KeyFlagFilter  = "flag_filter"
)

// GroupBy selects how file entries are laid out in the tree.
type GroupBy string

const (
	GroupBySourcePath GroupBy = "source_path"
	GroupByComponent  GroupBy = "component"
)

// Path separators. Component grouping nests source paths under a component
// node joined with ComponentSeparator.
const (
	PathSeparator      = "/"
	ComponentSeparator = ">"
)

// PathFunc derives the tree path of a file entry.
type PathFunc func(fe *model.FileEntry, meta *model.Meta) string

// BuildOptions is the validated form of a query string.
type BuildOptions struct {
	GroupBy     GroupBy
	MethodCount bool
	MinSize     float64
	Include     string
	Exclude     string
	Types       string
	FlagFilter  string

	// Warnings lists values that were rejected and replaced by defaults.
	Warnings []string
}

// Default returns options that keep every symbol, grouped by source path.
func Default() *BuildOptions {
	return &BuildOptions{GroupBy: GroupBySourcePath}
}

// Parse parses a query string, with or without a leading "?". Bad values
// fall back to defaults and are reported in Warnings; Parse never fails.
func Parse(query string) *BuildOptions {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	opts := FromValues(values)
	if err != nil {
		opts.warn("query: %v", err)
	}
	return opts
}

// FromValues builds options from already decoded query values.
func FromValues(values url.Values) *BuildOptions {
	opts := Default()

	switch g := GroupBy(values.Get(KeyGroupBy)); g {
	case "", GroupBySourcePath:
	case GroupByComponent:
		opts.GroupBy = g
	default:
		opts.warn("%s: unknown grouping %q", KeyGroupBy, g)
	}

	if _, ok := values[KeyMethodCount]; ok {
		opts.MethodCount = parsePresence(values.Get(KeyMethodCount))
	}

	if raw := values.Get(KeyMinSize); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			opts.warn("%s: invalid value %q", KeyMinSize, raw)
		} else {
			opts.MinSize = v
		}
	}

	opts.Include = values.Get(KeyInclude)
	if _, err := filter.CompilePattern(opts.Include); err != nil {
		opts.warn("%s: %v", KeyInclude, err)
		opts.Include = ""
	}
	opts.Exclude = values.Get(KeyExclude)
	if _, err := filter.CompilePattern(opts.Exclude); err != nil {
		opts.warn("%s: %v", KeyExclude, err)
		opts.Exclude = ""
	}

	opts.Types = parseTypes(values[KeyType], opts)
	if opts.MethodCount {
		opts.Types = model.SymbolDexMethod
	}

	if name := values.Get(KeyFlagFilter); name != "" {
		if _, ok := model.FlagNames[name]; ok {
			opts.FlagFilter = name
		} else {
			opts.warn("%s: unknown flag %q", KeyFlagFilter, name)
		}
	}
	return opts
}

// parsePresence treats a bare key as true; only explicit falsy values disable it.
func parsePresence(v string) bool {
	switch strings.ToLower(v) {
	case "0", "false", "off", "no":
		return false
	default:
		return true
	}
}

// parseTypes joins repeated and comma separated type values into a sorted,
// de-duplicated set of known tags.
func parseTypes(raw []string, opts *BuildOptions) string {
	seen := make(map[string]struct{})
	for _, v := range raw {
		for _, r := range strings.ReplaceAll(v, ",", "") {
			t := string(r)
			if !model.IsSymbolType(t) {
				opts.warn("%s: unknown symbol type %q", KeyType, t)
				continue
			}
			seen[t] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return ""
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return strings.Join(tags, "")
}

func (o *BuildOptions) warn(format string, args ...interface{}) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Separator returns the grouping-specific path separator.
func (o *BuildOptions) Separator() string {
	if o.GroupBy == GroupByComponent {
		return ComponentSeparator
	}
	return PathSeparator
}

// PathFunc returns the path extraction function for the grouping.
func (o *BuildOptions) PathFunc() PathFunc {
	if o.GroupBy == GroupByComponent {
		return func(fe *model.FileEntry, meta *model.Meta) string {
			return meta.Component(fe.ComponentIndex) + ComponentSeparator + fe.Path()
		}
	}
	return func(fe *model.FileEntry, _ *model.Meta) string {
		return fe.Path()
	}
}

// Filter compiles the options into a SymbolFilter.
func (o *BuildOptions) Filter() *filter.SymbolFilter {
	f := filter.New().MinSize(o.MinSize).Types(o.Types)
	if bit, ok := model.FlagNames[o.FlagFilter]; ok {
		f.Flag(bit)
	}
	// Patterns were validated by FromValues.
	inc, _ := filter.CompilePattern(o.Include)
	exc, _ := filter.CompilePattern(o.Exclude)
	return f.Include(inc).Exclude(exc)
}

// Encode renders the options as a canonical query string. Defaults are
// omitted, so Default().Encode() is empty.
func (o *BuildOptions) Encode() string {
	values := url.Values{}
	if o.GroupBy != "" && o.GroupBy != GroupBySourcePath {
		values.Set(KeyGroupBy, string(o.GroupBy))
	}
	if o.MethodCount {
		values.Set(KeyMethodCount, "on")
	}
	if o.MinSize > 0 {
		values.Set(KeyMinSize, strconv.FormatFloat(o.MinSize, 'f', -1, 64))
	}
	if o.Include != "" {
		values.Set(KeyInclude, o.Include)
	}
	if o.Exclude != "" {
		values.Set(KeyExclude, o.Exclude)
	}
	if o.Types != "" && !o.MethodCount {
		values.Set(KeyType, o.Types)
	}
	if o.FlagFilter != "" {
		values.Set(KeyFlagFilter, o.FlagFilter)
	}
	return values.Encode()
}

// String implements fmt.Stringer.
func (o *BuildOptions) String() string {
	if enc := o.Encode(); enc != "" {
		return enc
	}
	return "default"
}
