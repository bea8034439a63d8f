package usecases

import (
	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/capability"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// Deserialize turns a wire flow into an editor flow. Edges that no longer
// resolve against the catalog are dropped and reported, nodes whose agent is
// missing are kept disabled and reported. The input flow is not modified.
func Deserialize(f *flow.Flow, defs agent.Definitions) (*dto.LoadResult, error) {
	if defs == nil {
		return nil, ErrCatalogUnavailable
	}
	if f == nil {
		return nil, flow.ErrNilFlow
	}

	nodes := make([]flow.EditorNode, 0, len(f.Nodes))
	var unmatched []string
	for _, n := range f.Nodes {
		node, matched := DeserializeNode(n, defs)
		if !matched {
			unmatched = append(unmatched, n.ID)
		}
		nodes = append(nodes, node)
	}

	kept, dropped := capability.FilterEdges(capability.IndexNodes(f.Nodes, defs), f.Edges)
	edges := make([]flow.EditorEdge, len(kept))
	for i, e := range kept {
		edges[i] = flow.ToEditorEdge(e)
	}

	return &dto.LoadResult{
		Flow: &flow.EditorFlow{
			Nodes:    nodes,
			Edges:    edges,
			Name:     f.Name,
			Viewport: flow.CloneViewport(f.Viewport),
		},
		DroppedEdges:   dropped,
		UnmatchedNodes: unmatched,
	}, nil
}

// DeserializeNode builds the editor form of one node and reports whether its
// agent definition was found.
func DeserializeNode(n flow.Node, defs agent.Definitions) (flow.EditorNode, bool) {
	def, ok := defs.Get(n.DefName)

	data := flow.EditorNodeData{
		Name:    n.DefName,
		Enabled: ok && n.Enabled,
		Title:   flow.CloneString(n.Title),
	}
	if ok {
		data.Config = coerce.LoadBag(n.Config, def.DefaultConfig)
		data.Display = DisplayBag(def.DisplayConfig)
	} else {
		data.Config = coerce.UntypedBag(n.Config)
	}

	return flow.EditorNode{
		ID:       n.ID,
		Type:     flow.NodeTypeAgent,
		Position: flow.Position{X: n.X, Y: n.Y},
		Width:    flow.CloneFloat(n.Width),
		Height:   flow.CloneFloat(n.Height),
		Data:     data,
	}, ok
}

// DisplayBag returns every display key set to nil, or nil when the agent
// declares no display schema.
func DisplayBag(schema agent.DisplaySchema) map[string]any {
	if schema == nil {
		return nil
	}
	display := make(map[string]any, len(schema))
	for _, f := range schema {
		display[f.Key] = nil
	}
	return display
}
