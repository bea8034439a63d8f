package capability

import (
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// DropReason says why an edge did not survive load-time repair.
type DropReason string

const (
	ReasonUnknownSourceNode   DropReason = "unknown_source_node"
	ReasonUnknownTargetNode   DropReason = "unknown_target_node"
	ReasonUnmatchedSource     DropReason = "unmatched_source_agent"
	ReasonUnmatchedTarget     DropReason = "unmatched_target_agent"
	ReasonUnknownSourceHandle DropReason = "unknown_source_handle"
	ReasonUnknownTargetHandle DropReason = "unknown_target_handle"
	ReasonUnknownConfigPort   DropReason = "unknown_config_port"
)

// Stale reports whether the edge was dropped because the catalog no longer
// declares one of its handles or agents, as opposed to a dangling node id.
func (r DropReason) Stale() bool {
	switch r {
	case ReasonUnknownSourceNode, ReasonUnknownTargetNode:
		return false
	}
	return true
}

// DroppedEdge is an edge removed during repair.
type DroppedEdge struct {
	Edge   flow.Edge  `json:"edge"`
	Reason DropReason `json:"reason"`
}

// IndexNodes builds the capability index of every node in a wire flow.
func IndexNodes(nodes []flow.Node, defs agent.Definitions) map[string]Index {
	out := make(map[string]Index, len(nodes))
	for _, n := range nodes {
		out[n.ID] = Build(n.DefName, defs)
	}
	return out
}

// Check validates one edge against the node indexes. It returns the empty
// reason when the edge is valid.
func Check(indexes map[string]Index, e flow.Edge) DropReason {
	src, ok := indexes[e.Source]
	if !ok {
		return ReasonUnknownSourceNode
	}
	dst, ok := indexes[e.Target]
	if !ok {
		return ReasonUnknownTargetNode
	}
	if !src.Matched {
		return ReasonUnmatchedSource
	}
	if !dst.Matched {
		return ReasonUnmatchedTarget
	}
	if !src.HasOutput(e.SourceHandleName()) {
		return ReasonUnknownSourceHandle
	}
	target := e.TargetHandleName()
	if key, ok := ConfigPortKey(target); ok {
		if !dst.HasConfigPort(key) {
			return ReasonUnknownConfigPort
		}
		return ""
	}
	if !dst.HasInput(target) {
		return ReasonUnknownTargetHandle
	}
	return ""
}

// FilterEdges keeps the edges whose endpoints and handles resolve against the
// indexes, preserving order, and reports the rest.
func FilterEdges(indexes map[string]Index, edges []flow.Edge) ([]flow.Edge, []DroppedEdge) {
	kept := make([]flow.Edge, 0, len(edges))
	var dropped []DroppedEdge
	for _, e := range edges {
		if reason := Check(indexes, e); reason != "" {
			dropped = append(dropped, DroppedEdge{Edge: e, Reason: reason})
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}
