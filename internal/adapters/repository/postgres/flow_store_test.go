package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stn/agent-stream-app/internal/adapters/repository/storetest"
	"github.com/stn/agent-stream-app/internal/config"
	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/validation"
)

func TestFlowStore_Contract(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, config.PostgresConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storetest.Run(t, func(t *testing.T) storetest.Store {
		s := NewFlowStore(pool, nil)
		s.tableName = "agent_flows_test_" + uuid.NewString()[:8]
		require.NoError(t, s.CreateTables(ctx))
		t.Cleanup(func() {
			_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+s.tableName)
		})
		return s
	})
}

func TestFlowStore_ValidatesBeforeQuery(t *testing.T) {
	ctx := context.Background()
	s := NewFlowStore(nil, nil)

	assert.ErrorIs(t, s.Save(ctx, nil), flow.ErrNilFlow)

	err := s.Save(ctx, &flow.Flow{})
	var verrs validation.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, flow.ErrInvalidFlowName)

	_, err = s.Rename(ctx, "a", "")
	assert.ErrorIs(t, err, flow.ErrInvalidFlowName)
}

func TestNewPool_RequiresURL(t *testing.T) {
	_, err := NewPool(context.Background(), config.PostgresConfig{})
	assert.Error(t, err)
}
