package usecases

import (
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// Serialize turns an editor flow back into its wire form. Edges are copied as
// they are. When config values fail to coerce, the wire flow is still returned
// without the failing keys, together with a coerce.Errors listing every failure.
func Serialize(f *flow.EditorFlow, defs agent.Definitions) (*flow.Flow, error) {
	if defs == nil {
		return nil, ErrCatalogUnavailable
	}
	if f == nil {
		return nil, flow.ErrNilFlow
	}

	out := &flow.Flow{
		Nodes:    make([]flow.Node, 0, len(f.Nodes)),
		Edges:    make([]flow.Edge, len(f.Edges)),
		Name:     f.Name,
		Viewport: flow.CloneViewport(f.Viewport),
	}

	var errs coerce.Errors
	for _, n := range f.Nodes {
		node, err := SerializeNode(n, defs)
		if err != nil {
			cerrs, ok := coerce.AsErrors(err)
			if !ok {
				return nil, err
			}
			errs = append(errs, cerrs...)
		}
		out.Nodes = append(out.Nodes, node)
	}
	for i, e := range f.Edges {
		out.Edges[i] = flow.ToWireEdge(e)
	}

	if len(errs) > 0 {
		return out, errs
	}
	return out, nil
}

// SerializeNode builds the wire form of one node. Without a definition the
// config bag is copied as is.
func SerializeNode(n flow.EditorNode, defs agent.Definitions) (flow.Node, error) {
	var schema agent.ConfigSchema
	if def, ok := defs.Get(n.Data.Name); ok {
		schema = def.DefaultConfig
	}
	cfg, err := coerce.SaveBag(n.ID, n.Data.Config, schema)

	return flow.Node{
		ID:      n.ID,
		DefName: n.Data.Name,
		Enabled: n.Data.Enabled,
		Config:  cfg,
		Title:   flow.CloneString(n.Data.Title),
		X:       n.Position.X,
		Y:       n.Position.Y,
		Width:   flow.CloneFloat(n.Width),
		Height:  flow.CloneFloat(n.Height),
	}, err
}
