// Package file stores each wire flow as a JSON document under a root
// directory. A flow named "team/daily" lives in <root>/team/daily.json.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/validation"
)

const ext = ".json"

// FlowStore is a directory of flow documents.
type FlowStore struct {
	mu   sync.RWMutex
	root string
}

// NewFlowStore creates the root directory when missing.
func NewFlowStore(root string) (*FlowStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create flow directory: %w", err)
	}
	return &FlowStore{root: root}, nil
}

// Root returns the store directory.
func (s *FlowStore) Root() string { return s.root }

func (s *FlowStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name)+ext)
}

// Get reads the named flow. The stored name field is replaced by the name
// derived from the path.
func (s *FlowStore) Get(ctx context.Context, name string) (*flow.Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !flow.ValidName(name) {
		return nil, fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(name)
}

func (s *FlowStore) read(name string) (*flow.Flow, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %q: %w", name, err)
	}
	var f flow.Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode flow %q: %w", name, err)
	}
	f.Name = name
	if f.Nodes == nil {
		f.Nodes = []flow.Node{}
	}
	if f.Edges == nil {
		f.Edges = []flow.Edge{}
	}
	return &f, nil
}

// List reads every flow below the root, ordered by name.
func (s *FlowStore) List(ctx context.Context) ([]*flow.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(strings.TrimSuffix(rel, ext))
		if flow.ValidName(name) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	sort.Strings(names)

	flows := make([]*flow.Flow, 0, len(names))
	for _, name := range names {
		f, err := s.read(name)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, nil
}

// Save writes f as indented JSON, replacing the previous document atomically.
func (s *FlowStore) Save(ctx context.Context, f *flow.Flow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validation.ValidateFlow(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(f)
}

func (s *FlowStore) write(f *flow.Flow) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode flow %q: %w", f.Name, err)
	}

	path := s.path(f.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create flow directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".flow-*")
	if err != nil {
		return fmt.Errorf("failed to write flow %q: %w", f.Name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write flow %q: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write flow %q: %w", f.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write flow %q: %w", f.Name, err)
	}
	return nil
}

// Rename moves a flow document to newName.
func (s *FlowStore) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !flow.ValidName(newName) {
		return "", fmt.Errorf("%w: %q", flow.ErrInvalidFlowName, newName)
	}
	if !flow.ValidName(oldName) {
		return "", fmt.Errorf("%w: %q", flow.ErrFlowNotFound, oldName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read(oldName)
	if err != nil {
		return "", err
	}
	if oldName == newName {
		return newName, nil
	}
	if _, err := os.Stat(s.path(newName)); err == nil {
		return "", fmt.Errorf("%w: %q", flow.ErrFlowExists, newName)
	}

	f.Name = newName
	if err := s.write(f); err != nil {
		return "", err
	}
	if err := os.Remove(s.path(oldName)); err != nil {
		return "", fmt.Errorf("failed to remove flow %q: %w", oldName, err)
	}
	return newName, nil
}

// Remove deletes the named flow document.
func (s *FlowStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !flow.ValidName(name) {
		return fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to remove flow %q: %w", name, err)
	}
	return nil
}
