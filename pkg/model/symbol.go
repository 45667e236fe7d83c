// Package model defines the core data structures used throughout the application.
package model

import (
	"encoding/json"
	"sort"
)

// Keys used by the compact newline-delimited JSON format.
const (
	KeySourcePath     = "p"
	KeyComponentIndex = "c"
	KeyFileSymbols    = "s"
	KeySymbolName     = "n"
	KeySize           = "b"
	KeyType           = "t"
	KeyCount          = "u"
	KeyFlags          = "f"
	KeyNumAliases     = "a"
)

// Placeholder names used when a file entry has no path or component.
const (
	NoPath      = "(No path)"
	NoComponent = "(No component)"
)

// Artifact types describe the structural kind of a container node. They are
// always the first character of a container's Type string.
const (
	ArtifactDirectory = "D"
	ArtifactComponent = "C"
	ArtifactGroup     = "G"
	ArtifactFile      = "F"
	ArtifactJavaClass = "J"
)

// Symbol types, one character each.
const (
	SymbolBSS         = "b"
	SymbolReadOnly    = "r"
	SymbolData        = "d"
	SymbolCode        = "t"
	SymbolVTable      = "v"
	SymbolGenerated   = "*"
	SymbolDex         = "x"
	SymbolDexMethod   = "m"
	SymbolOther       = "o"
	SymbolPak         = "p"
	SymbolPakNonTrans = "P"
)

// AllSymbolTypes lists every known symbol type tag.
var AllSymbolTypes = []string{
	SymbolBSS, SymbolReadOnly, SymbolData, SymbolCode, SymbolVTable, SymbolGenerated,
	SymbolDex, SymbolDexMethod, SymbolOther, SymbolPak, SymbolPakNonTrans,
}

// IsSymbolType reports whether t is a known symbol type tag.
func IsSymbolType(t string) bool {
	for _, s := range AllSymbolTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Flag bits carried on symbols.
const (
	FlagAnonymous       uint32 = 1 << 0
	FlagStartup         uint32 = 1 << 1
	FlagUnlikely        uint32 = 1 << 2
	FlagRel             uint32 = 1 << 3
	FlagRelLocal        uint32 = 1 << 4
	FlagGeneratedSource uint32 = 1 << 5
	FlagClone           uint32 = 1 << 6
	FlagHot             uint32 = 1 << 7
	FlagCoverage        uint32 = 1 << 8
	FlagUncompressed    uint32 = 1 << 9
)

// FlagNames maps the names accepted by the flag_filter option to flag bits.
var FlagNames = map[string]uint32{
	"anonymous":    FlagAnonymous,
	"startup":      FlagStartup,
	"unlikely":     FlagUnlikely,
	"rel":          FlagRel,
	"rel_local":    FlagRelLocal,
	"generated":    FlagGeneratedSource,
	"clone":        FlagClone,
	"hot":          FlagHot,
	"coverage":     FlagCoverage,
	"uncompressed": FlagUncompressed,
}

// FlagNameList returns the flag names in sorted order.
func FlagNameList() []string {
	names := make([]string, 0, len(FlagNames))
	for name := range FlagNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Meta is the first record of a size stream.
type Meta struct {
	Components []string `json:"components"`
	Total      float64  `json:"total"`
	DiffMode   bool     `json:"diff_mode"`
}

// UnmarshalJSON accepts both "diff_mode" and "diffMode".
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw struct {
		Components []string `json:"components"`
		Total      float64  `json:"total"`
		DiffMode   *bool    `json:"diff_mode"`
		DiffMode2  *bool    `json:"diffMode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Components = raw.Components
	m.Total = raw.Total
	m.DiffMode = false
	if raw.DiffMode != nil {
		m.DiffMode = *raw.DiffMode
	} else if raw.DiffMode2 != nil {
		m.DiffMode = *raw.DiffMode2
	}
	return nil
}

// Component returns the component name for an index, or NoComponent.
func (m *Meta) Component(idx int) string {
	if m == nil || idx < 0 || idx >= len(m.Components) || m.Components[idx] == "" {
		return NoComponent
	}
	return m.Components[idx]
}

// SymbolEntry is a single symbol inside a file entry.
type SymbolEntry struct {
	Name       string  `json:"n"`
	Size       float64 `json:"b"`
	Type       string  `json:"t"`
	Count      *int    `json:"u,omitempty"`
	Flags      uint32  `json:"f,omitempty"`
	NumAliases int     `json:"a,omitempty"`
}

// EffectiveCount returns the explicit count, or the mode default.
func (s *SymbolEntry) EffectiveCount(diffMode bool) int {
	if s.Count != nil {
		return *s.Count
	}
	if diffMode {
		return 0
	}
	return 1
}

// Aliases returns the alias count, defaulting to 1.
func (s *SymbolEntry) Aliases() int {
	if s.NumAliases <= 0 {
		return 1
	}
	return s.NumAliases
}

// FileEntry is one line of the stream after the Meta record.
type FileEntry struct {
	SourcePath     string        `json:"p"`
	ComponentIndex int           `json:"c"`
	Symbols        []SymbolEntry `json:"s"`
}

// Path returns the source path or NoPath when empty.
func (f *FileEntry) Path() string {
	if f.SourcePath == "" {
		return NoPath
	}
	return f.SourcePath
}

// IntPtr is a helper for building SymbolEntry counts.
func IntPtr(v int) *int {
	return &v
}
