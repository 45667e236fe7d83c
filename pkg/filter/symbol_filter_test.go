package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/size-analysis/pkg/model"
)

func target(idPath, typ string, size float64, flags uint32) *Target {
	return &Target{IDPath: idPath, Component: "core", Type: typ, Size: size, Flags: flags}
}

func TestSymbolFilter_Empty(t *testing.T) {
	var nilFilter *SymbolFilter
	assert.True(t, nilFilter.Match(target("a:f", "t", 1, 0)))
	assert.True(t, New().Match(target("a:f", "t", 1, 0)))
	assert.Equal(t, "none", New().String())
}

func TestSymbolFilter_MinSize(t *testing.T) {
	f := New().MinSize(100)

	tests := []struct {
		name string
		size float64
		want bool
	}{
		{"above", 150, true},
		{"equal", 100, true},
		{"below", 99, false},
		{"negative above", -150, true},
		{"negative below", -50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(target("a:f", "t", tt.size, 0)))
		})
	}

	assert.Equal(t, 0, New().MinSize(0).Len())
	assert.Equal(t, 0, New().MinSize(-5).Len())
}

func TestSymbolFilter_Types(t *testing.T) {
	f := New().Types("td")
	assert.True(t, f.Match(target("a:f", "t", 1, 0)))
	assert.True(t, f.Match(target("a:f", "d", 1, 0)))
	assert.False(t, f.Match(target("a:f", "b", 1, 0)))
	assert.Equal(t, 0, New().Types("").Len())
}

func TestSymbolFilter_Flag(t *testing.T) {
	f := New().Flag(model.FlagHot)
	assert.True(t, f.Match(target("a:f", "t", 1, model.FlagHot|model.FlagStartup)))
	assert.False(t, f.Match(target("a:f", "t", 1, model.FlagStartup)))
}

func TestSymbolFilter_IncludeExclude(t *testing.T) {
	inc, err := CompilePattern(`^third_party/`)
	require.NoError(t, err)
	exc, err := CompilePattern(`(?<=/)test`)
	require.NoError(t, err)

	f := New().Include(inc).Exclude(exc)
	assert.Equal(t, "include,exclude", f.String())

	assert.True(t, f.Match(target("third_party/zlib/deflate.c:deflate", "t", 1, 0)))
	assert.False(t, f.Match(target("base/files.cc:Open", "t", 1, 0)))
	assert.False(t, f.Match(target("third_party/test/x.cc:f", "t", 1, 0)))

	t.Run("component match counts", func(t *testing.T) {
		comp, err := CompilePattern(`^core$`)
		require.NoError(t, err)
		assert.True(t, New().Include(comp).Match(target("base/files.cc:Open", "t", 1, 0)))
	})
}

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern("")
	assert.NoError(t, err)
	assert.Nil(t, re)

	_, err = CompilePattern(`(unclosed`)
	assert.Error(t, err)

	// nil patterns from a failed compile add nothing
	assert.Equal(t, 0, New().Include(nil).Exclude(nil).Len())
}

func TestSymbolFilter_Conjunction(t *testing.T) {
	f := New().MinSize(10).Types("t").Flag(model.FlagStartup)
	assert.Equal(t, 3, f.Len())
	assert.True(t, f.Match(target("a:f", "t", 20, model.FlagStartup)))
	assert.False(t, f.Match(target("a:f", "t", 20, 0)))
	assert.False(t, f.Match(target("a:f", "d", 20, model.FlagStartup)))
	assert.False(t, f.Match(target("a:f", "t", 5, model.FlagStartup)))
}

func TestTargetFor(t *testing.T) {
	fe := &model.FileEntry{SourcePath: "", ComponentIndex: 0}
	sym := &model.SymbolEntry{Name: "f", Type: "t", Flags: model.FlagClone}
	tg := TargetFor("(No path):f", "core", fe, sym, 42)
	assert.Equal(t, model.NoPath, tg.SrcPath)
	assert.Equal(t, "core", tg.Component)
	assert.Equal(t, model.FlagClone, tg.Flags)
	assert.Equal(t, 42.0, tg.Size)
}
