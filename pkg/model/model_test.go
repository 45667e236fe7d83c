package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeta_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		diffMode bool
	}{
		{"snake case", `{"components":["a"],"total":10,"diff_mode":true}`, true},
		{"camel case", `{"components":["a"],"total":10,"diffMode":true}`, true},
		{"absent", `{"components":["a"],"total":10}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Meta
			require.NoError(t, json.Unmarshal([]byte(tt.input), &m))
			assert.Equal(t, tt.diffMode, m.DiffMode)
			assert.Equal(t, []string{"a"}, m.Components)
			assert.Equal(t, 10.0, m.Total)
		})
	}
}

func TestMeta_Component(t *testing.T) {
	m := &Meta{Components: []string{"core", ""}}
	assert.Equal(t, "core", m.Component(0))
	assert.Equal(t, NoComponent, m.Component(1))
	assert.Equal(t, NoComponent, m.Component(5))
	assert.Equal(t, NoComponent, m.Component(-1))
}

func TestSymbolEntry_EffectiveCount(t *testing.T) {
	s := SymbolEntry{Name: "f"}
	assert.Equal(t, 1, s.EffectiveCount(false))
	assert.Equal(t, 0, s.EffectiveCount(true))

	s.Count = IntPtr(-1)
	assert.Equal(t, -1, s.EffectiveCount(true))
	assert.Equal(t, 1, s.Aliases())
}

func TestFileEntry_Decode(t *testing.T) {
	line := `{"p":"dir/a.cc","c":0,"s":[{"n":"f1","b":100,"t":"t"},{"n":"f2","b":200,"t":"d","u":-1,"f":128,"a":2}]}`
	var fe FileEntry
	require.NoError(t, json.Unmarshal([]byte(line), &fe))

	assert.Equal(t, "dir/a.cc", fe.Path())
	require.Len(t, fe.Symbols, 2)
	assert.Nil(t, fe.Symbols[0].Count)
	require.NotNil(t, fe.Symbols[1].Count)
	assert.Equal(t, -1, *fe.Symbols[1].Count)
	assert.Equal(t, FlagHot, fe.Symbols[1].Flags)
	assert.Equal(t, 2, fe.Symbols[1].Aliases())

	empty := FileEntry{}
	assert.Equal(t, NoPath, empty.Path())
}

func TestChildStats_DominantType(t *testing.T) {
	t.Run("largest absolute size wins", func(t *testing.T) {
		cs := ChildStats{"t": {Size: 100}, "d": {Size: -300}}
		assert.Equal(t, "d", cs.DominantType("t"))
	})

	t.Run("current kept on tie", func(t *testing.T) {
		cs := ChildStats{"t": {Size: 100}, "d": {Size: 100}}
		assert.Equal(t, "t", cs.DominantType("t"))
		assert.Equal(t, "d", cs.DominantType("d"))
	})

	t.Run("ascending tag order without current", func(t *testing.T) {
		cs := ChildStats{"t": {Size: 100}, "d": {Size: 100}}
		assert.Equal(t, "d", cs.DominantType(""))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", ChildStats{}.DominantType(""))
	})
}

func TestChildStats_MergeAndClone(t *testing.T) {
	cs := ChildStats{"t": {Size: 1, Count: 1}}
	clone := cs.Clone()
	clone["t"].Size = 50
	assert.Equal(t, 1.0, cs["t"].Size)

	cs.Merge(ChildStats{"t": {Size: 2, Count: 1, Added: 1}, "d": {Size: 3, Count: 1}})
	assert.Equal(t, &ChildStat{Size: 3, Count: 2, Added: 1}, cs["t"])
	assert.Equal(t, &ChildStat{Size: 3, Count: 1}, cs["d"])
}

func TestSortChildren_Stable(t *testing.T) {
	children := []*TreeNode{
		{IDPath: "a", Size: 10},
		{IDPath: "b", Size: -30},
		{IDPath: "c", Size: 10},
		{IDPath: "d", Size: 20},
	}
	SortChildren(children)

	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.IDPath
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestTreeNode_JSONShape(t *testing.T) {
	n := &TreeNode{IDPath: "/", Type: "Dt", ChildStats: ChildStats{}}
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "children")
	assert.Nil(t, decoded["children"])
	assert.Nil(t, decoded["parent"])
	assert.NotContains(t, decoded, "srcPath")
	assert.False(t, n.Loaded())
}

func TestLoadStatus(t *testing.T) {
	assert.Equal(t, "running", LoadStatusRunning.String())
	assert.Equal(t, "superseded", LoadStatusSuperseded.String())
	assert.Equal(t, "unknown", LoadStatus(42).String())
	assert.False(t, LoadStatusRunning.IsTerminal())
	assert.True(t, LoadStatusAborted.IsTerminal())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &LoadRecord{StartedAt: start}
	assert.Zero(t, r.Duration())
	end := start.Add(2 * time.Second)
	r.FinishedAt = &end
	assert.Equal(t, 2*time.Second, r.Duration())
}
