// Package memory provides an in-memory flow store for tests and the
// memory backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/validation"
)

// FlowStore keeps wire flows keyed by name. Flows are deep copied on the way
// in and out, so callers never share state with the store.
type FlowStore struct {
	mu    sync.RWMutex
	flows map[string]*flowEntry
	now   func() time.Time
}

type flowEntry struct {
	flow      *flow.Flow
	updatedAt time.Time
}

// NewFlowStore creates an empty store.
func NewFlowStore() *FlowStore {
	return &FlowStore{
		flows: make(map[string]*flowEntry),
		now:   time.Now,
	}
}

// Get returns a copy of the named flow.
func (s *FlowStore) Get(ctx context.Context, name string) (*flow.Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	return e.flow.Clone(), nil
}

// List returns copies of every flow ordered by name.
func (s *FlowStore) List(ctx context.Context) ([]*flow.Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*flow.Flow, 0, len(s.flows))
	for _, e := range s.flows {
		out = append(out, e.flow.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save stores f under its name, replacing any previous version.
func (s *FlowStore) Save(ctx context.Context, f *flow.Flow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validation.ValidateFlow(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flows[f.Name] = &flowEntry{flow: f.Clone(), updatedAt: s.now()}
	return nil
}

// Rename moves a flow to newName. Renaming onto an existing flow fails with
// flow.ErrFlowExists; renaming a flow to its own name is a no-op.
func (s *FlowStore) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !flow.ValidName(newName) {
		return "", fmt.Errorf("%w: %q", flow.ErrInvalidFlowName, newName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.flows[oldName]
	if !ok {
		return "", fmt.Errorf("%w: %q", flow.ErrFlowNotFound, oldName)
	}
	if oldName == newName {
		return newName, nil
	}
	if _, taken := s.flows[newName]; taken {
		return "", fmt.Errorf("%w: %q", flow.ErrFlowExists, newName)
	}
	e.flow.Name = newName
	e.updatedAt = s.now()
	s.flows[newName] = e
	delete(s.flows, oldName)
	return newName, nil
}

// Remove deletes the named flow.
func (s *FlowStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[name]; !ok {
		return fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	delete(s.flows, name)
	return nil
}

// UpdatedAt reports when the named flow was last written.
func (s *FlowStore) UpdatedAt(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.flows[name]
	if !ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}
