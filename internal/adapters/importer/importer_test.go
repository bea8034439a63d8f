package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stn/agent-stream-app/internal/adapters/fileformat"
)

const flowJSON = `{
  "name": "stored name",
  "nodes": [
    {"id": "N1", "def_name": "source", "enabled": true, "config": {"interval": 10, "seed": 9007199254740993}, "title": null, "x": 1, "y": 2}
  ],
  "edges": [],
  "viewport": {"x": 0, "y": 0, "zoom": 1}
}`

const flowYAML = `
name: ignored
nodes:
  - id: N1
    def_name: sink
    enabled: true
    config:
      options: {mode: fast}
    x: 0
    y: 0
edges:
  - id: e1
    source: N1
    source_handle: out1
    target: N2
    target_handle: "config:options"
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_JSON(t *testing.T) {
	f, err := New().Import(context.Background(), write(t, " Daily Report .json", flowJSON))
	require.NoError(t, err)
	assert.Equal(t, "Daily Report", f.Name)
	require.Len(t, f.Nodes, 1)
	assert.Equal(t, int64(10), f.Nodes[0].Config["interval"])
	assert.Equal(t, int64(9007199254740993), f.Nodes[0].Config["seed"])
	assert.Equal(t, 1.0, f.Viewport.Zoom)
	assert.NotNil(t, f.Edges)
}

func TestImport_YAML(t *testing.T) {
	f, err := New().Import(context.Background(), write(t, "pipeline.yaml", flowYAML))
	require.NoError(t, err)
	assert.Equal(t, "pipeline", f.Name)
	assert.Equal(t, "sink", f.Nodes[0].DefName)
	assert.Equal(t, map[string]any{"mode": "fast"}, f.Nodes[0].Config["options"])
	require.Len(t, f.Edges, 1)
	assert.Equal(t, "config:options", *f.Edges[0].TargetHandle)
	assert.Nil(t, f.Viewport)
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New().Import(ctx, write(t, "flow.txt", flowJSON))
	assert.ErrorIs(t, err, fileformat.ErrUnsupportedFormat)

	_, err = New().Import(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = New().Import(ctx, write(t, "broken.json", "{"))
	assert.Error(t, err)

	_, err = New().Import(ctx, write(t, " .json", flowJSON))
	assert.ErrorIs(t, err, ErrEmptyName)

	dir := filepath.Join(t.TempDir(), "dir.json")
	require.NoError(t, os.Mkdir(dir, 0o755))
	_, err = New().Import(ctx, dir)
	assert.Error(t, err)
}
