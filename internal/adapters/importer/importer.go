// Package importer reads wire flows from JSON or YAML files outside the
// flow store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/stn/agent-stream-app/internal/adapters/fileformat"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

var ErrEmptyName = errors.New("flow name derived from file name is empty")

// Importer reads flow files from the local file system.
type Importer struct{}

// New creates an Importer.
func New() *Importer { return &Importer{} }

// Import reads the flow at path. The flow is named after the file, not after
// the name stored inside it.
func (i *Importer) Import(ctx context.Context, path string) (*flow.Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := fileformat.FromPath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("import %s: not a regular file", path)
	}

	name := fileformat.Stem(path)
	if name == "" {
		return nil, ErrEmptyName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	var f flow.Flow
	if err := fileformat.Decode(format, data, &f); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
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
