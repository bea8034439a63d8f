package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

func strPtr(s string) *string { return &s }

func testDefs() agent.Definitions {
	return agent.Definitions{
		"source": {Name: "source", Outputs: []string{"out1"}},
		"sink": {
			Name:   "sink",
			Inputs: []string{"in1", ""},
			DefaultConfig: agent.ConfigSchema{
				{Key: "threshold", Entry: agent.ConfigEntry{Value: 1, Type: agent.ConfigTypeNumber}},
				{Key: "hiddenKey", Entry: agent.ConfigEntry{Value: "x", Hidden: true}},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	idx := Build("sink", testDefs())
	assert.True(t, idx.Matched)
	assert.True(t, idx.HasInput("in1"))
	assert.True(t, idx.HasInput(""))
	assert.False(t, idx.HasOutput("in1"))
	assert.True(t, idx.HasConfigPort("threshold"))
	assert.False(t, idx.HasConfigPort("hiddenKey"))

	miss := Build("gone", testDefs())
	assert.False(t, miss.Matched)
	assert.Empty(t, miss.Outputs)
	assert.Empty(t, miss.Inputs)
	assert.Empty(t, miss.ConfigPorts)

	assert.False(t, Build("sink", nil).Matched)
}

func TestConfigPortKey(t *testing.T) {
	key, ok := ConfigPortKey("config:threshold")
	assert.True(t, ok)
	assert.Equal(t, "threshold", key)

	_, ok = ConfigPortKey("in1")
	assert.False(t, ok)
}

func TestFilterEdges(t *testing.T) {
	nodes := []flow.Node{
		{ID: "N1", DefName: "source"},
		{ID: "N2", DefName: "sink"},
		{ID: "N3", DefName: "removed"},
	}
	indexes := IndexNodes(nodes, testDefs())

	tests := []struct {
		name   string
		edge   flow.Edge
		reason DropReason
	}{
		{
			name: "input kept",
			edge: flow.Edge{ID: "e1", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("in1")},
		},
		{
			name:   "unknown source handle",
			edge:   flow.Edge{ID: "e2", Source: "N1", SourceHandle: strPtr("out2"), Target: "N2", TargetHandle: strPtr("in1")},
			reason: ReasonUnknownSourceHandle,
		},
		{
			name: "config port kept",
			edge: flow.Edge{ID: "e3", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("config:threshold")},
		},
		{
			name:   "hidden config port dropped",
			edge:   flow.Edge{ID: "e4", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("config:hiddenKey")},
			reason: ReasonUnknownConfigPort,
		},
		{
			name:   "config prefix never falls back to inputs",
			edge:   flow.Edge{ID: "e5", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("config:in1")},
			reason: ReasonUnknownConfigPort,
		},
		{
			name: "nil target handle is the empty handle",
			edge: flow.Edge{ID: "e6", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2"},
		},
		{
			name:   "nil source handle is not a wildcard",
			edge:   flow.Edge{ID: "e7", Source: "N1", Target: "N2", TargetHandle: strPtr("in1")},
			reason: ReasonUnknownSourceHandle,
		},
		{
			name:   "unknown target handle",
			edge:   flow.Edge{ID: "e8", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("in9")},
			reason: ReasonUnknownTargetHandle,
		},
		{
			name:   "missing source node",
			edge:   flow.Edge{ID: "e9", Source: "N0", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("in1")},
			reason: ReasonUnknownSourceNode,
		},
		{
			name:   "missing target node",
			edge:   flow.Edge{ID: "e10", Source: "N1", SourceHandle: strPtr("out1"), Target: "N9", TargetHandle: strPtr("in1")},
			reason: ReasonUnknownTargetNode,
		},
		{
			name:   "unmatched source agent",
			edge:   flow.Edge{ID: "e11", Source: "N3", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("in1")},
			reason: ReasonUnmatchedSource,
		},
		{
			name:   "unmatched target agent",
			edge:   flow.Edge{ID: "e12", Source: "N1", SourceHandle: strPtr("out1"), Target: "N3", TargetHandle: strPtr("in1")},
			reason: ReasonUnmatchedTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, Check(indexes, tt.edge))
		})
	}

	all := make([]flow.Edge, len(tests))
	for i, tt := range tests {
		all[i] = tt.edge
	}
	kept, dropped := FilterEdges(indexes, all)

	var keptIDs []string
	for _, e := range kept {
		keptIDs = append(keptIDs, e.ID)
	}
	assert.Equal(t, []string{"e1", "e3", "e6"}, keptIDs)
	require.Len(t, dropped, len(tests)-3)
	assert.Equal(t, "e2", dropped[0].Edge.ID)
	assert.Equal(t, ReasonUnknownSourceHandle, dropped[0].Reason)
}

func TestFilterEdges_Empty(t *testing.T) {
	kept, dropped := FilterEdges(nil, nil)
	assert.NotNil(t, kept)
	assert.Empty(t, kept)
	assert.Nil(t, dropped)
}

func TestDropReason_Stale(t *testing.T) {
	assert.False(t, ReasonUnknownSourceNode.Stale())
	assert.False(t, ReasonUnknownTargetNode.Stale())
	assert.True(t, ReasonUnknownConfigPort.Stale())
	assert.True(t, ReasonUnmatchedTarget.Stale())
}
