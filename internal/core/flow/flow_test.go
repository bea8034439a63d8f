package flow

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFlow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		flow    Flow
		wantErr error
	}{
		{
			name:    "missing name",
			flow:    Flow{},
			wantErr: ErrInvalidFlowName,
		},
		{
			name:    "node without id",
			flow:    Flow{Name: "main", Nodes: []Node{{DefName: "a"}}},
			wantErr: ErrInvalidNodeID,
		},
		{
			name:    "node without agent",
			flow:    Flow{Name: "main", Nodes: []Node{{ID: "n1"}}},
			wantErr: ErrInvalidDefName,
		},
		{
			name:    "duplicate node",
			flow:    Flow{Name: "main", Nodes: []Node{{ID: "n1", DefName: "a"}, {ID: "n1", DefName: "b"}}},
			wantErr: ErrDuplicateNode,
		},
		{
			name:    "edge without id",
			flow:    Flow{Name: "main", Edges: []Edge{{Source: "a", Target: "b"}}},
			wantErr: ErrInvalidEdgeID,
		},
		{
			name:    "edge without source",
			flow:    Flow{Name: "main", Edges: []Edge{{ID: "e", Target: "b"}}},
			wantErr: ErrInvalidSource,
		},
		{
			name:    "edge without target",
			flow:    Flow{Name: "main", Edges: []Edge{{ID: "e", Source: "a"}}},
			wantErr: ErrInvalidTarget,
		},
		{
			name: "dangling edge is structurally fine",
			flow: Flow{Name: "main", Edges: []Edge{{ID: "e", Source: "gone", Target: "also-gone"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flow.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFlow_Clone(t *testing.T) {
	w := 120.0
	orig := &Flow{
		Name:     "main",
		Viewport: &Viewport{X: 1, Y: 2, Zoom: 1.5},
		Nodes: []Node{{
			ID: "n1", DefName: "a", Enabled: true,
			Config: map[string]any{"k": map[string]any{"deep": 1}},
			Title:  strPtr("first"), Width: &w,
		}},
		Edges: []Edge{{ID: "e1", Source: "n1", SourceHandle: strPtr("out"), Target: "n1"}},
	}

	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Nodes[0].Config["k"].(map[string]any)["deep"] = 2
	*cp.Nodes[0].Title = "changed"
	*cp.Edges[0].SourceHandle = "other"
	cp.Viewport.Zoom = 3

	assert.Equal(t, 1, orig.Nodes[0].Config["k"].(map[string]any)["deep"])
	assert.Equal(t, "first", *orig.Nodes[0].Title)
	assert.Equal(t, "out", orig.Edges[0].SourceHandleName())
	assert.Equal(t, 1.5, orig.Viewport.Zoom)

	var nilFlow *Flow
	assert.Nil(t, nilFlow.Clone())
}

func TestEdge_HandleNames(t *testing.T) {
	e := Edge{ID: "e", Source: "a", Target: "b", TargetHandle: strPtr("config:x")}
	assert.Equal(t, "", e.SourceHandleName())
	assert.Equal(t, "config:x", e.TargetHandleName())

	ed := ToEditorEdge(e)
	assert.Nil(t, ed.SourceHandle)
	assert.Equal(t, "config:x", *ed.TargetHandle)
	assert.Equal(t, e, ToWireEdge(ed))
}

func TestFlow_WireJSON(t *testing.T) {
	data := `{
	  "name": "main",
	  "viewport": null,
	  "nodes": [{"id": "n1", "def_name": "a", "enabled": true, "config": null, "title": null, "x": 1, "y": 2}],
	  "edges": [{"id": "e1", "source": "n1", "source_handle": null, "target": "n1", "target_handle": "in"}]
	}`
	var f Flow
	require.NoError(t, json.Unmarshal([]byte(data), &f))
	assert.Nil(t, f.Viewport)
	assert.Nil(t, f.Nodes[0].Config)
	assert.Nil(t, f.Nodes[0].Width)
	assert.Equal(t, "in", f.Edges[0].TargetHandleName())

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, data, string(out))

	n, ok := f.Node("n1")
	require.True(t, ok)
	assert.Equal(t, "a", n.DefName)
	_, ok = f.Node("missing")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	f := New("fresh")
	assert.Equal(t, "fresh", f.Name)
	assert.NotNil(t, f.Nodes)
	assert.NotNil(t, f.Edges)
	assert.NoError(t, f.Validate())
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"main", true},
		{"team/daily report", true},
		{"a/b/c", true},
		{"", false},
		{" main", false},
		{"/main", false},
		{"main/", false},
		{"a//b", false},
		{"../main", false},
		{"a/./b", false},
		{`a\b`, false},
		{"tab\there", false},
		{strings.Repeat("x", 256), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.name))
		})
	}
}

func TestFlow_EditNodesAndEdges(t *testing.T) {
	f := New("main")
	require.NoError(t, f.AddNode(Node{ID: "a", DefName: "source", Enabled: true}))
	require.NoError(t, f.AddNode(Node{ID: "b", DefName: "sink"}))
	require.NoError(t, f.AddNode(Node{ID: "c", DefName: "sink"}))
	assert.ErrorIs(t, f.AddNode(Node{ID: "a", DefName: "sink"}), ErrDuplicateNode)
	assert.ErrorIs(t, f.AddNode(Node{ID: "d"}), ErrInvalidDefName)

	require.NoError(t, f.AddEdge(Edge{ID: "ab", Source: "a", Target: "b"}))
	require.NoError(t, f.AddEdge(Edge{ID: "bc", Source: "b", Target: "c"}))
	require.NoError(t, f.AddEdge(Edge{ID: "ac", Source: "a", Target: "c"}))
	assert.ErrorIs(t, f.AddEdge(Edge{ID: "ab", Source: "a", Target: "c"}), ErrDuplicateEdge)

	require.NoError(t, f.RemoveNode("b"))
	assert.Len(t, f.Nodes, 2)
	require.Len(t, f.Edges, 1, "edges attached to a removed node go with it")
	assert.Equal(t, "ac", f.Edges[0].ID)
	assert.ErrorIs(t, f.RemoveNode("b"), ErrNodeNotFound)

	require.NoError(t, f.RemoveEdge("ac"))
	assert.Empty(t, f.Edges)
	assert.ErrorIs(t, f.RemoveEdge("ac"), ErrEdgeNotFound)

	f.DisableAll()
	for _, n := range f.Nodes {
		assert.False(t, n.Enabled)
	}
}
