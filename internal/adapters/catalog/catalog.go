// Package catalog loads agent definitions from a directory of JSON and YAML
// files and serves them as the schema catalog.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/stn/agent-stream-app/internal/adapters/fileformat"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/pkg/validation"
)

var (
	ErrDuplicateDefinition = errors.New("agent definition declared twice")
	ErrNotLoaded           = errors.New("catalog not loaded")
)

// definitionKeys are the top level keys that mark a document as a single
// definition rather than a map of them.
var definitionKeys = map[string]struct{}{
	"kind": {}, "name": {}, "path": {}, "inputs": {}, "outputs": {},
	"default_config": {}, "global_config": {}, "display_config": {},
}

// LoadDir reads every *.json, *.yaml and *.yml file directly inside dir. A
// file holds either one definition, named after the file when it has no
// name, or an object mapping names to definitions.
func LoadDir(dir string) (agent.Definitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := fileformat.FromPath(e.Name()); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	defs := agent.Definitions{}
	for _, path := range paths {
		fileDefs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, d := range fileDefs {
			if _, dup := defs[d.Name]; dup {
				return nil, fmt.Errorf("%s: %w: %q", path, ErrDuplicateDefinition, d.Name)
			}
			defs[d.Name] = d
		}
	}
	return defs, nil
}

// LoadFile reads the definitions of one file, validated.
func LoadFile(path string) ([]*agent.Definition, error) {
	format, err := fileformat.FromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := fileformat.Decode(format, data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var defs []*agent.Definition
	if isDefinition(doc) {
		d, err := decodeDefinition(doc, fileformat.Stem(path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defs = append(defs, d)
	} else {
		names := make([]string, 0, len(doc))
		for name := range doc {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(doc[name], &inner); err != nil {
				return nil, fmt.Errorf("%s: definition %q: %w", path, name, err)
			}
			d, err := decodeDefinition(inner, name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			defs = append(defs, d)
		}
	}

	for _, d := range defs {
		if err := validation.ValidateDefinition(d); err != nil {
			return nil, fmt.Errorf("%s: definition %q: %w", path, d.Name, err)
		}
	}
	return defs, nil
}

func isDefinition(doc map[string]json.RawMessage) bool {
	for k := range doc {
		if _, ok := definitionKeys[k]; ok {
			return true
		}
	}
	return false
}

func decodeDefinition(doc map[string]json.RawMessage, fallbackName string) (*agent.Definition, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d agent.Definition
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("definition %q: %w", fallbackName, err)
	}
	if d.Name == "" {
		d.Name = fallbackName
	}
	return &d, nil
}

// Static serves a fixed catalog.
type Static struct {
	mu   sync.RWMutex
	defs agent.Definitions
}

// NewStatic wraps defs. A nil catalog makes Definitions fail, matching a
// catalog that has not been fetched yet.
func NewStatic(defs agent.Definitions) *Static {
	return &Static{defs: defs}
}

// Definitions returns the catalog.
func (s *Static) Definitions(ctx context.Context) (agent.Definitions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.defs == nil {
		return nil, ErrNotLoaded
	}
	return s.defs, nil
}

// Replace swaps in a new catalog.
func (s *Static) Replace(defs agent.Definitions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
}

// Dir serves the definitions of a directory, loaded on first use and again
// after Reload.
type Dir struct {
	Static
	dir    string
	loaded bool
}

// NewDir creates a provider for dir without reading it.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir}
}

// Definitions loads the directory on first call.
func (d *Dir) Definitions(ctx context.Context) (agent.Definitions, error) {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()
	if !loaded {
		if err := d.Reload(); err != nil {
			return nil, err
		}
	}
	return d.Static.Definitions(ctx)
}

// Reload rereads the directory.
func (d *Dir) Reload() error {
	defs, err := LoadDir(d.dir)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs = defs
	d.loaded = true
	return nil
}
