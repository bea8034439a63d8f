// Package flow defines agent flows in their two representations: the wire
// form that is persisted, and the editor form the flow editor works on.
package flow

import (
	"strings"
	"unicode"

	"github.com/stn/agent-stream-app/internal/core/jsonnum"
)

const maxNameLen = 255

// Viewport is the editor camera of a flow.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Node is the persisted form of one agent node.
type Node struct {
	ID      string         `json:"id" validate:"required"`
	DefName string         `json:"def_name" validate:"required"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config"`
	Title   *string        `json:"title"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Width   *float64       `json:"width,omitempty"`
	Height  *float64       `json:"height,omitempty"`
}

// UnmarshalJSON keeps integer config values exact.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var p plain
	if err := jsonnum.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Config = jsonnum.Map(p.Config)
	*n = Node(p)
	return nil
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.DefName == "" {
		return ErrInvalidDefName
	}
	return nil
}

// Edge is the persisted form of a connection. A nil handle is the empty
// handle name.
type Edge struct {
	ID           string  `json:"id" validate:"required"`
	Source       string  `json:"source" validate:"required"`
	SourceHandle *string `json:"source_handle"`
	Target       string  `json:"target" validate:"required"`
	TargetHandle *string `json:"target_handle"`
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrInvalidEdgeID
	}
	if e.Source == "" {
		return ErrInvalidSource
	}
	if e.Target == "" {
		return ErrInvalidTarget
	}
	return nil
}

// SourceHandleName returns the source handle, "" when unset.
func (e *Edge) SourceHandleName() string { return handleName(e.SourceHandle) }

// TargetHandleName returns the target handle, "" when unset.
func (e *Edge) TargetHandleName() string { return handleName(e.TargetHandle) }

// Flow is the persisted form of an agent flow.
type Flow struct {
	Nodes    []Node    `json:"nodes" validate:"dive"`
	Edges    []Edge    `json:"edges" validate:"dive"`
	Name     string    `json:"name" validate:"required,flow_name"`
	Viewport *Viewport `json:"viewport"`
}

// Validate checks the structure of a flow: a name, well formed nodes with
// unique ids, and well formed edges. Edge endpoints are not resolved here;
// dangling edges are repaired on load.
func (f *Flow) Validate() error {
	if !ValidName(f.Name) {
		return ErrInvalidFlowName
	}
	seen := make(map[string]struct{}, len(f.Nodes))
	for i := range f.Nodes {
		if err := f.Nodes[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Nodes[i].ID]; dup {
			return ErrDuplicateNode
		}
		seen[f.Nodes[i].ID] = struct{}{}
	}
	for i := range f.Edges {
		if err := f.Edges[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the node with the given id.
func (f *Flow) Node(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the flow.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}
	out := &Flow{Name: f.Name, Viewport: CloneViewport(f.Viewport)}
	if f.Nodes != nil {
		out.Nodes = make([]Node, len(f.Nodes))
		for i, n := range f.Nodes {
			n.Config = cloneBag(n.Config)
			n.Title = CloneString(n.Title)
			n.Width = CloneFloat(n.Width)
			n.Height = CloneFloat(n.Height)
			out.Nodes[i] = n
		}
	}
	if f.Edges != nil {
		out.Edges = make([]Edge, len(f.Edges))
		for i, e := range f.Edges {
			e.SourceHandle = CloneString(e.SourceHandle)
			e.TargetHandle = CloneString(e.TargetHandle)
			out.Edges[i] = e
		}
	}
	return out
}

// AddNode appends a node. Its id must not be in use.
func (f *Flow) AddNode(n Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if _, ok := f.Node(n.ID); ok {
		return ErrDuplicateNode
	}
	f.Nodes = append(f.Nodes, n)
	return nil
}

// RemoveNode removes a node together with every edge attached to it.
func (f *Flow) RemoveNode(id string) error {
	idx := -1
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNodeNotFound
	}
	f.Nodes = append(f.Nodes[:idx], f.Nodes[idx+1:]...)

	kept := f.Edges[:0]
	for _, e := range f.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	f.Edges = kept
	return nil
}

// AddEdge appends an edge. Its id must not be in use. Endpoints are not
// resolved; edges are checked against capabilities when the flow is loaded.
func (f *Flow) AddEdge(e Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	for i := range f.Edges {
		if f.Edges[i].ID == e.ID {
			return ErrDuplicateEdge
		}
	}
	f.Edges = append(f.Edges, e)
	return nil
}

// RemoveEdge removes an edge by id.
func (f *Flow) RemoveEdge(id string) error {
	for i := range f.Edges {
		if f.Edges[i].ID == id {
			f.Edges = append(f.Edges[:i], f.Edges[i+1:]...)
			return nil
		}
	}
	return ErrEdgeNotFound
}

// DisableAll disables every node of the flow.
func (f *Flow) DisableAll() {
	for i := range f.Nodes {
		f.Nodes[i].Enabled = false
	}
}

// New returns an empty flow with the given name.
func New(name string) *Flow {
	return &Flow{Name: name, Nodes: []Node{}, Edges: []Edge{}}
}

// ValidName reports whether name can name a flow. A name is a slash
// separated path of non-empty segments; flows are grouped into folders by
// it, so the dot segments, backslashes and control characters are rejected.
func ValidName(name string) bool {
	if name == "" || len(name) > maxNameLen || strings.TrimSpace(name) != name {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	for _, r := range name {
		if r == '\\' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func handleName(h *string) string {
	if h == nil {
		return ""
	}
	return *h
}
