// Package storetest holds the contract every flow store implementation must
// satisfy, run from each store's own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/validation"
)

// Store is the flow repository surface under test.
type Store interface {
	Get(ctx context.Context, name string) (*flow.Flow, error)
	List(ctx context.Context) ([]*flow.Flow, error)
	Save(ctx context.Context, f *flow.Flow) error
	Rename(ctx context.Context, oldName, newName string) (string, error)
	Remove(ctx context.Context, name string) error
}

func strPtr(s string) *string { return &s }

// SampleFlow returns a small flow exercising every wire field.
func SampleFlow(name string) *flow.Flow {
	h := 80.0
	return &flow.Flow{
		Name:     name,
		Viewport: &flow.Viewport{X: 4, Y: 2, Zoom: 0.75},
		Nodes: []flow.Node{
			{ID: "N1", DefName: "source", Enabled: true, Config: map[string]any{"interval": int64(5), "label": "tick"}, Title: strPtr("Ticker")},
			{ID: "N2", DefName: "sink", Config: map[string]any{"options": map[string]any{"mode": "fast"}}, X: 120, Y: 40, Height: &h},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "N1", SourceHandle: strPtr("out1"), Target: "N2", TargetHandle: strPtr("config:options")},
		},
	}
}

// Run executes the contract against stores built by newStore. Every call
// must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		in := SampleFlow("main")
		require.NoError(t, s.Save(ctx, in))

		got, err := s.Get(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, in.Name, got.Name)
		assert.Equal(t, in.Viewport, got.Viewport)
		assert.Equal(t, in.Edges, got.Edges)
		require.Len(t, got.Nodes, 2)
		assert.Equal(t, "Ticker", *got.Nodes[0].Title)
		assert.EqualValues(t, 5, got.Nodes[0].Config["interval"])
		assert.Equal(t, map[string]any{"mode": "fast"}, got.Nodes[1].Config["options"])
		assert.Equal(t, 80.0, *got.Nodes[1].Height)

		got.Nodes[0].Enabled = false
		again, err := s.Get(ctx, "main")
		require.NoError(t, err)
		assert.True(t, again.Nodes[0].Enabled, "returned flows are copies")
	})

	t.Run("integers stay exact", func(t *testing.T) {
		s := newStore(t)
		in := SampleFlow("main")
		in.Nodes[0].Config["seed"] = int64(9007199254740993)
		require.NoError(t, s.Save(ctx, in))

		got, err := s.Get(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, "9007199254740993", fmt.Sprint(got.Nodes[0].Config["seed"]))
	})

	t.Run("save replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, SampleFlow("main")))
		next := SampleFlow("main")
		next.Nodes = next.Nodes[:1]
		next.Edges = []flow.Edge{}
		require.NoError(t, s.Save(ctx, next))

		got, err := s.Get(ctx, "main")
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 1)
		assert.Empty(t, got.Edges)
	})

	t.Run("save validates", func(t *testing.T) {
		s := newStore(t)
		bad := SampleFlow("main")
		bad.Nodes[1].ID = "N1"
		assert.ErrorIs(t, s.Save(ctx, bad), flow.ErrDuplicateNode)

		err := s.Save(ctx, &flow.Flow{Name: ""})
		var verrs validation.ValidationErrors
		assert.True(t, errors.As(err, &verrs))

		assert.ErrorIs(t, s.Save(ctx, nil), flow.ErrNilFlow)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, flow.ErrFlowNotFound)
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		flows, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, flows)

		for _, name := range []string{"b", "a", "c"} {
			require.NoError(t, s.Save(ctx, SampleFlow(name)))
		}
		flows, err = s.List(ctx)
		require.NoError(t, err)
		names := make([]string, len(flows))
		for i, f := range flows {
			names[i] = f.Name
		}
		assert.Equal(t, []string{"a", "b", "c"}, names)
	})

	t.Run("rename", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, SampleFlow("old")))
		require.NoError(t, s.Save(ctx, SampleFlow("taken")))

		name, err := s.Rename(ctx, "old", "new")
		require.NoError(t, err)
		assert.Equal(t, "new", name)

		got, err := s.Get(ctx, "new")
		require.NoError(t, err)
		assert.Equal(t, "new", got.Name)
		_, err = s.Get(ctx, "old")
		assert.ErrorIs(t, err, flow.ErrFlowNotFound)

		_, err = s.Rename(ctx, "new", "taken")
		assert.ErrorIs(t, err, flow.ErrFlowExists)
		_, err = s.Rename(ctx, "missing", "other")
		assert.ErrorIs(t, err, flow.ErrFlowNotFound)
		_, err = s.Rename(ctx, "new", "a/../b")
		assert.ErrorIs(t, err, flow.ErrInvalidFlowName)

		name, err = s.Rename(ctx, "new", "new")
		require.NoError(t, err)
		assert.Equal(t, "new", name)
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, SampleFlow("main")))
		require.NoError(t, s.Remove(ctx, "main"))
		_, err := s.Get(ctx, "main")
		assert.ErrorIs(t, err, flow.ErrFlowNotFound)
		assert.ErrorIs(t, s.Remove(ctx, "main"), flow.ErrFlowNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Get(cctx, "main")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
