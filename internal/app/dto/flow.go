package dto

import (
	"fmt"

	"github.com/stn/agent-stream-app/internal/core/capability"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

// LoadResult is a flow ready for editing plus what load-time repair removed.
type LoadResult struct {
	Flow           *flow.EditorFlow         `json:"flow"`
	DroppedEdges   []capability.DroppedEdge `json:"dropped_edges"`
	UnmatchedNodes []string                 `json:"unmatched_nodes"`
}

// Clean reports whether the flow loaded without any repair.
func (r *LoadResult) Clean() bool {
	return len(r.DroppedEdges) == 0 && len(r.UnmatchedNodes) == 0
}

// SavePolicy decides what a save does with config values that fail coercion.
type SavePolicy string

const (
	// SaveAbort persists nothing and returns the coercion errors.
	SaveAbort SavePolicy = "abort"
	// SaveKeepPrevious persists the flow with each failed key restored from
	// the stored flow.
	SaveKeepPrevious SavePolicy = "keep_previous"
)

// ParseSavePolicy parses a policy name; the empty string selects SaveAbort.
func ParseSavePolicy(s string) (SavePolicy, error) {
	switch SavePolicy(s) {
	case "", SaveAbort:
		return SaveAbort, nil
	case SaveKeepPrevious:
		return SaveKeepPrevious, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSavePolicy, s)
}

// SaveResult describes a completed save.
type SaveResult struct {
	Name string `json:"name"`
	// Restored lists the keys that kept their stored value under SaveKeepPrevious.
	Restored []CoercionFailure `json:"restored,omitempty"`
}

// CoercionFailure is the transport form of a coercion error.
type CoercionFailure struct {
	NodeID   string `json:"node_id"`
	Key      string `json:"key"`
	Expected string `json:"expected"`
	Raw      any    `json:"raw"`
	Message  string `json:"message"`
}

// CoercionFailures converts coercion errors for transport.
func CoercionFailures(errs coerce.Errors) []CoercionFailure {
	out := make([]CoercionFailure, len(errs))
	for i, e := range errs {
		out[i] = CoercionFailure{
			NodeID:   e.NodeID,
			Key:      e.Key,
			Expected: string(e.Expected),
			Raw:      e.Raw,
			Message:  e.Err.Error(),
		}
	}
	return out
}
