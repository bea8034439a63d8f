// Package postgres stores wire flows in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/serialization"
	"github.com/stn/agent-stream-app/pkg/validation"
)

const uniqueViolation = "23505"

// FlowStore keeps one row per flow, holding the serialized wire flow.
type FlowStore struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewFlowStore wraps a pool. A nil serializer selects
// serialization.DefaultSerializer.
func NewFlowStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *FlowStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &FlowStore{
		pool:       pool,
		serializer: serializer,
		tableName:  "agent_flows",
	}
}

// CreateTables creates the flow table if it does not exist.
func (s *FlowStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Get loads the named flow.
func (s *FlowStore) Get(ctx context.Context, name string) (*flow.Flow, error) {
	if name == "" {
		return nil, flow.ErrInvalidFlowName
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE name = $1", s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %q: %w", name, err)
	}
	return s.decode(name, data)
}

// List loads every flow ordered by name.
func (s *FlowStore) List(ctx context.Context) ([]*flow.Flow, error) {
	query := fmt.Sprintf("SELECT name, data FROM %s ORDER BY name", s.tableName)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	flows := []*flow.Flow{}
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("failed to scan flow row: %w", err)
		}
		f, err := s.decode(name, data)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// Save upserts f under its name.
func (s *FlowStore) Save(ctx context.Context, f *flow.Flow) error {
	if err := validation.ValidateFlow(f); err != nil {
		return err
	}
	data, err := s.serializer.EncodeFlow(f)
	if err != nil {
		return fmt.Errorf("failed to serialize flow %q: %w", f.Name, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, f.Name, data); err != nil {
		return fmt.Errorf("failed to save flow %q: %w", f.Name, err)
	}
	return nil
}

// Rename moves a flow to newName inside one transaction.
func (s *FlowStore) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if !flow.ValidName(newName) {
		return "", fmt.Errorf("%w: %q", flow.ErrInvalidFlowName, newName)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin rename: %w", err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE name = $1 FOR UPDATE", s.tableName)
	err = tx.QueryRow(ctx, query, oldName).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", flow.ErrFlowNotFound, oldName)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load flow %q: %w", oldName, err)
	}
	if oldName == newName {
		return newName, nil
	}

	f, err := s.decode(oldName, data)
	if err != nil {
		return "", err
	}
	f.Name = newName
	if data, err = s.serializer.EncodeFlow(f); err != nil {
		return "", fmt.Errorf("failed to serialize flow %q: %w", newName, err)
	}

	query = fmt.Sprintf("UPDATE %s SET name = $1, data = $2, updated_at = now() WHERE name = $3", s.tableName)
	if _, err := tx.Exec(ctx, query, newName, data, oldName); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%w: %q", flow.ErrFlowExists, newName)
		}
		return "", fmt.Errorf("failed to rename flow %q: %w", oldName, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit rename: %w", err)
	}
	return newName, nil
}

// Remove deletes the named flow.
func (s *FlowStore) Remove(ctx context.Context, name string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = $1", s.tableName)
	tag, err := s.pool.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to remove flow %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	return nil
}

// Close closes the pool.
func (s *FlowStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *FlowStore) decode(name string, data []byte) (*flow.Flow, error) {
	f, err := s.serializer.DecodeFlow(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize flow %q: %w", name, err)
	}
	f.Name = name
	return f, nil
}
