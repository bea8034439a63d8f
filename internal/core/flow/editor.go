package flow

import "github.com/stn/agent-stream-app/internal/core/coerce"

// NodeTypeAgent is the editor node type of every agent node.
const NodeTypeAgent = "agent"

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EditorNodeData is the data block of an editor node.
// Display is nil when the agent declares no display slots.
type EditorNodeData struct {
	Name    string         `json:"name"`
	Enabled bool           `json:"enabled"`
	Title   *string        `json:"title"`
	Config  coerce.Bag     `json:"config"`
	Display map[string]any `json:"display"`
}

type EditorNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Width    *float64       `json:"width,omitempty"`
	Height   *float64       `json:"height,omitempty"`
	Data     EditorNodeData `json:"data"`
}

type EditorEdge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	SourceHandle *string `json:"sourceHandle"`
	Target       string  `json:"target"`
	TargetHandle *string `json:"targetHandle"`
}

// EditorFlow is the in-memory form of a flow during an edit session.
type EditorFlow struct {
	Nodes    []EditorNode `json:"nodes"`
	Edges    []EditorEdge `json:"edges"`
	Name     string       `json:"name"`
	Viewport *Viewport    `json:"viewport"`
}

// ToEditorEdge renames edge fields; values are untouched.
func ToEditorEdge(e Edge) EditorEdge {
	return EditorEdge{
		ID:           e.ID,
		Source:       e.Source,
		SourceHandle: CloneString(e.SourceHandle),
		Target:       e.Target,
		TargetHandle: CloneString(e.TargetHandle),
	}
}

// ToWireEdge is the inverse of ToEditorEdge.
func ToWireEdge(e EditorEdge) Edge {
	return Edge{
		ID:           e.ID,
		Source:       e.Source,
		SourceHandle: CloneString(e.SourceHandle),
		Target:       e.Target,
		TargetHandle: CloneString(e.TargetHandle),
	}
}

// CloneString copies an optional string.
func CloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CloneFloat copies an optional number.
func CloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// CloneViewport copies an optional viewport.
func CloneViewport(v *Viewport) *Viewport {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBag(b map[string]any) map[string]any {
	return coerce.CloneRaw(b)
}
