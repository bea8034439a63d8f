package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/adapters/catalog"
	"github.com/stn/agent-stream-app/internal/adapters/importer"
	"github.com/stn/agent-stream-app/internal/adapters/repository/memory"
	"github.com/stn/agent-stream-app/internal/adapters/settings"
	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/app/usecases"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

func strPtr(s string) *string { return &s }

func testDefinitions() agent.Definitions {
	return agent.Definitions{
		"ticker": {
			Kind: "Board", Name: "ticker",
			Outputs: []string{"tick"},
			DefaultConfig: agent.ConfigSchema{
				{Key: "interval", Entry: agent.ConfigEntry{Value: 10, Type: agent.ConfigTypeInteger}},
			},
		},
		"llm": {
			Kind: "Board", Name: "llm",
			Inputs:  []string{"prompt"},
			Outputs: []string{"reply"},
			DefaultConfig: agent.ConfigSchema{
				{Key: "temperature", Entry: agent.ConfigEntry{Value: 0.7, Type: agent.ConfigTypeNumber}},
			},
			GlobalConfig: agent.ConfigSchema{
				{Key: "api_key", Entry: agent.ConfigEntry{Value: "", Type: agent.ConfigTypePassword}},
				{Key: "timeout", Entry: agent.ConfigEntry{Value: 30, Type: agent.ConfigTypeInteger}},
			},
			DisplayConfig: agent.DisplaySchema{
				{Key: "reply", Entry: agent.DisplayEntry{Type: agent.DisplayTypeString}},
			},
		},
	}
}

func storedFlow() *flow.Flow {
	return &flow.Flow{
		Name: "main",
		Nodes: []flow.Node{
			{ID: "T", DefName: "ticker", Enabled: true, Config: map[string]any{"interval": 5}},
			{ID: "L", DefName: "llm", Enabled: true, Config: map[string]any{"temperature": 0.2}},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "T", SourceHandle: strPtr("tick"), Target: "L", TargetHandle: strPtr("prompt")},
			{ID: "e2", Source: "T", SourceHandle: strPtr("tick"), Target: "L", TargetHandle: strPtr("config:temperature")},
			{ID: "e3", Source: "T", SourceHandle: strPtr("tock"), Target: "L", TargetHandle: strPtr("prompt")},
		},
	}
}

type fixture struct {
	svc   *FlowService
	store *memory.FlowStore
	cat   *catalog.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewFlowStore()
	require.NoError(t, store.Save(context.Background(), storedFlow()))
	cat := catalog.NewStatic(testDefinitions())
	return &fixture{
		svc:   NewFlowService(cat, store, importer.New(), zap.NewNop()),
		store: store,
		cat:   cat,
	}
}

type failingCatalog struct{}

func (failingCatalog) Definitions(context.Context) (agent.Definitions, error) {
	return nil, errors.New("agents directory unreadable")
}

func TestFlowService_CatalogRequired(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFlowStore()

	tests := []struct {
		name    string
		catalog usecases.CatalogProvider
	}{
		{"no catalog", nil},
		{"catalog not loaded", catalog.NewStatic(nil)},
		{"catalog error", failingCatalog{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFlowService(tt.catalog, store, nil, nil)
			_, err := svc.Load(ctx, "main")
			assert.ErrorIs(t, err, usecases.ErrCatalogUnavailable)
			_, err = svc.Save(ctx, &flow.EditorFlow{Name: "main"}, dto.SaveAbort)
			assert.ErrorIs(t, err, usecases.ErrCatalogUnavailable)
			_, err = svc.NewNode(ctx, "ticker")
			assert.ErrorIs(t, err, usecases.ErrCatalogUnavailable)
		})
	}
}

func TestFlowService_Load(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Load(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "main", res.Flow.Name)
	require.Len(t, res.Flow.Edges, 2)
	require.Len(t, res.DroppedEdges, 1)
	assert.Equal(t, "e3", res.DroppedEdges[0].Edge.ID)
	assert.Equal(t, coerce.Int("5"), res.Flow.Nodes[0].Data.Config["interval"])
	assert.Equal(t, map[string]any{"reply": nil}, res.Flow.Nodes[1].Data.Display)

	_, err = f.svc.Load(ctx, "missing")
	assert.ErrorIs(t, err, flow.ErrFlowNotFound)

	all, err := f.svc.LoadAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, "main")

	broken, err := f.svc.Check(ctx)
	require.NoError(t, err)
	assert.Contains(t, broken, "main")
}

func TestFlowService_SaveAbort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Load(ctx, "main")
	require.NoError(t, err)
	ed := res.Flow
	ed.Nodes[0].Data.Config["interval"] = coerce.Int("soon")

	out, err := f.svc.Save(ctx, ed, dto.SaveAbort)
	assert.Nil(t, out)
	require.Error(t, err)
	errs, ok := coerce.AsErrors(err)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "T", errs[0].NodeID)

	stored, err := f.store.Get(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, stored.Edges, 3, "nothing was written")

	ed.Nodes[0].Data.Config["interval"] = coerce.Int("7")
	out, err = f.svc.Save(ctx, ed, "")
	require.NoError(t, err)
	assert.Equal(t, "main", out.Name)
	assert.Empty(t, out.Restored)

	stored, err = f.store.Get(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Nodes[0].Config["interval"])
	assert.Len(t, stored.Edges, 2, "repaired edges are saved")
}

func TestFlowService_SaveKeepPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Load(ctx, "main")
	require.NoError(t, err)
	ed := res.Flow
	ed.Nodes[0].Data.Config["interval"] = coerce.Int("soon")
	ed.Nodes[1].Data.Config["temperature"] = coerce.Number("0.9")

	out, err := f.svc.Save(ctx, ed, dto.SaveKeepPrevious)
	require.Error(t, err)
	assert.ErrorIs(t, err, dto.ErrPartialSave)
	assert.ErrorIs(t, err, coerce.ErrCoercion)
	require.NotNil(t, out)
	require.Len(t, out.Restored, 1)
	assert.Equal(t, "interval", out.Restored[0].Key)

	stored, err := f.store.Get(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Nodes[0].Config["interval"])
	assert.Equal(t, 0.9, stored.Nodes[1].Config["temperature"])

	_, err = f.svc.Save(ctx, ed, dto.SavePolicy("best_effort"))
	assert.ErrorIs(t, err, dto.ErrInvalidSavePolicy)
}

func TestFlowService_SaveKeepPreviousNewFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ed := &flow.EditorFlow{
		Name: "fresh",
		Nodes: []flow.EditorNode{{
			ID: "T", Type: flow.NodeTypeAgent,
			Data: flow.EditorNodeData{Name: "ticker", Config: coerce.Bag{"interval": coerce.Int("x")}},
		}},
	}
	_, err := f.svc.Save(ctx, ed, dto.SaveKeepPrevious)
	assert.ErrorIs(t, err, dto.ErrPartialSave)

	stored, err := f.store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotContains(t, stored.Nodes[0].Config, "interval")
}

func TestFlowService_NewFlowAndEnsureMain(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFlowStore()
	svc := NewFlowService(catalog.NewStatic(testDefinitions()), store, nil, nil)

	require.NoError(t, svc.EnsureMain(ctx))
	require.NoError(t, svc.EnsureMain(ctx))
	flows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, MainFlow, flows[0].Name)

	f, err := svc.NewFlow(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "main_2", f.Name)

	f, err = svc.NewFlow(ctx, "tools/search")
	require.NoError(t, err)
	assert.Equal(t, "tools/search", f.Name)

	_, err = svc.NewFlow(ctx, "../escape")
	assert.ErrorIs(t, err, flow.ErrInvalidFlowName)
}

func TestFlowService_Import(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), " main .json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "name": "ignored",
  "nodes": [
    {"id": "a", "def_name": "ticker", "enabled": true, "config": {"interval": 3}, "title": null, "x": 0, "y": 0},
    {"id": "b", "def_name": "llm", "enabled": true, "config": {}, "title": null, "x": 0, "y": 0}
  ],
  "edges": [
    {"id": "e", "source": "a", "source_handle": "tick", "target": "b", "target_handle": "prompt"}
  ]
}`), 0o644))

	imported, err := f.svc.Import(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "main_2", imported.Name)
	require.Len(t, imported.Nodes, 2)
	for _, n := range imported.Nodes {
		assert.False(t, n.Enabled)
		assert.NotContains(t, []string{"a", "b"}, n.ID)
	}
	require.Len(t, imported.Edges, 1)
	assert.Equal(t, imported.Nodes[0].ID, imported.Edges[0].Source)

	stored, err := f.store.Get(ctx, "main_2")
	require.NoError(t, err)
	assert.Equal(t, imported, stored)

	_, err = f.svc.Import(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	noImport := NewFlowService(f.cat, f.store, nil, nil)
	_, err = noImport.Import(ctx, path)
	assert.ErrorIs(t, err, ErrImportNotConfigured)
}

func TestFlowService_EditNodesAndEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.NewNode(ctx, "llm")
	require.NoError(t, err)
	assert.Equal(t, 0.7, n.Config["temperature"])
	_, err = f.svc.NewNode(ctx, "nope")
	assert.ErrorIs(t, err, agent.ErrDefinitionNotFound)

	require.NoError(t, f.svc.AddNode(ctx, "main", *n))
	assert.ErrorIs(t, f.svc.AddNode(ctx, "main", *n), flow.ErrDuplicateNode)

	edge := flow.Edge{ID: "e9", Source: "T", SourceHandle: strPtr("tick"), Target: n.ID, TargetHandle: strPtr("prompt")}
	require.NoError(t, f.svc.AddEdge(ctx, "main", edge))
	assert.ErrorIs(t, f.svc.AddEdge(ctx, "main", edge), flow.ErrDuplicateEdge)

	require.NoError(t, f.svc.RemoveEdge(ctx, "main", "e1"))
	assert.ErrorIs(t, f.svc.RemoveEdge(ctx, "main", "e1"), flow.ErrEdgeNotFound)

	require.NoError(t, f.svc.RemoveNode(ctx, "main", "T"))
	stored, err := f.store.Get(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, stored.Nodes, 2)
	assert.Empty(t, stored.Edges, "edges of a removed node go with it")

	assert.ErrorIs(t, f.svc.AddNode(ctx, "missing", *n), flow.ErrFlowNotFound)
}

func TestFlowService_RenameRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.svc.Rename(ctx, "main", "work/main")
	require.NoError(t, err)
	assert.Equal(t, "work/main", name)
	_, err = f.svc.Load(ctx, "work/main")
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, "work/main"))
	assert.ErrorIs(t, f.svc.Remove(ctx, "work/main"), flow.ErrFlowNotFound)
}

func TestConfigService(t *testing.T) {
	ctx := context.Background()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"), nil)
	require.NoError(t, err)
	svc := NewConfigService(catalog.NewStatic(testDefinitions()), store, store, zap.NewNop())

	bag, err := svc.GlobalConfig(ctx, "llm")
	require.NoError(t, err)
	assert.Equal(t, coerce.Bag{"api_key": coerce.Password(""), "timeout": coerce.Int("30")}, bag)

	bag["api_key"] = coerce.Password("sk-test")
	bag["timeout"] = coerce.Int("60")
	require.NoError(t, svc.SetGlobalConfig(ctx, "llm", bag))

	stored, err := store.GlobalConfigs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"api_key": "sk-test", "timeout": int64(60)}, stored["llm"])

	bag["timeout"] = coerce.Int("forever")
	err = svc.SetGlobalConfig(ctx, "llm", bag)
	assert.ErrorIs(t, err, coerce.ErrCoercion)
	stored, err = store.GlobalConfigs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60), stored["llm"]["timeout"], "failed coercion stores nothing")

	_, err = svc.GlobalConfig(ctx, "missing")
	assert.ErrorIs(t, err, agent.ErrDefinitionNotFound)
	assert.ErrorIs(t, svc.SetGlobalConfig(ctx, "missing", nil), agent.ErrDefinitionNotFound)

	core, err := svc.PatchCoreSettings(ctx, map[string]any{"autostart": true})
	require.NoError(t, err)
	assert.True(t, *core.Autostart)
	core, err = svc.CoreSettings(ctx)
	require.NoError(t, err)
	assert.True(t, *core.Autostart)
}
