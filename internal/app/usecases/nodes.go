package usecases

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// NewNode creates an enabled wire node of the given agent type, configured
// with the schema defaults and identified by a fresh UUID.
func NewNode(defName string, defs agent.Definitions) (*flow.Node, error) {
	if defs == nil {
		return nil, ErrCatalogUnavailable
	}
	def, ok := defs.Get(defName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", agent.ErrDefinitionNotFound, defName)
	}
	return &flow.Node{
		ID:      uuid.NewString(),
		DefName: def.Name,
		Enabled: true,
		Config:  DefaultConfig(def.DefaultConfig),
	}, nil
}

// DefaultConfig returns the raw schema defaults of a config schema.
func DefaultConfig(schema agent.ConfigSchema) map[string]any {
	cfg := make(map[string]any, len(schema))
	for _, f := range schema {
		cfg[f.Key] = f.Entry.Value
	}
	return coerce.CloneRaw(cfg)
}

// CopySubFlow duplicates a selection of editor nodes and the edges running
// between them. Copies get fresh ids and edges are rewired to the copies;
// edges with an endpoint outside the selection are not copied.
func CopySubFlow(nodes []flow.EditorNode, edges []flow.EditorEdge) ([]flow.EditorNode, []flow.EditorEdge) {
	ids := make(map[string]string, len(nodes))
	outNodes := make([]flow.EditorNode, 0, len(nodes))
	for _, n := range nodes {
		id := uuid.NewString()
		ids[n.ID] = id

		n.ID = id
		n.Width = flow.CloneFloat(n.Width)
		n.Height = flow.CloneFloat(n.Height)
		n.Data.Title = flow.CloneString(n.Data.Title)
		n.Data.Config = n.Data.Config.Clone()
		n.Data.Display = cloneDisplay(n.Data.Display)
		outNodes = append(outNodes, n)
	}

	outEdges := make([]flow.EditorEdge, 0, len(edges))
	for _, e := range edges {
		src, ok := ids[e.Source]
		if !ok {
			continue
		}
		dst, ok := ids[e.Target]
		if !ok {
			continue
		}
		outEdges = append(outEdges, flow.EditorEdge{
			ID:           uuid.NewString(),
			Source:       src,
			SourceHandle: flow.CloneString(e.SourceHandle),
			Target:       dst,
			TargetHandle: flow.CloneString(e.TargetHandle),
		})
	}
	return outNodes, outEdges
}

// cloneDisplay resets every display slot of a copied node.
func cloneDisplay(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k := range d {
		out[k] = nil
	}
	return out
}

// CopyWireSubFlow is CopySubFlow for wire nodes and edges. Imported flows are
// passed through it so their ids never collide with flows already loaded.
func CopyWireSubFlow(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge) {
	ids := make(map[string]string, len(nodes))
	outNodes := make([]flow.Node, 0, len(nodes))
	for _, n := range nodes {
		id := uuid.NewString()
		ids[n.ID] = id
		c := (&flow.Flow{Nodes: []flow.Node{n}}).Clone().Nodes[0]
		c.ID = id
		outNodes = append(outNodes, c)
	}

	outEdges := make([]flow.Edge, 0, len(edges))
	for _, e := range edges {
		src, ok := ids[e.Source]
		if !ok {
			continue
		}
		dst, ok := ids[e.Target]
		if !ok {
			continue
		}
		outEdges = append(outEdges, flow.Edge{
			ID:           uuid.NewString(),
			Source:       src,
			SourceHandle: flow.CloneString(e.SourceHandle),
			Target:       dst,
			TargetHandle: flow.CloneString(e.TargetHandle),
		})
	}
	return outNodes, outEdges
}

// UniqueName returns name when it is free, otherwise the first of name_2,
// name_3, ... that is.
func UniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
