// Package sqlite stores wire flows in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/serialization"
	"github.com/stn/agent-stream-app/pkg/validation"
)

// FlowStore keeps one row per flow, holding the serialized wire flow.
type FlowStore struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// Open opens the database at path (":memory:" for a private in-memory
// database) and creates the flow table.
func Open(ctx context.Context, path string, serializer *serialization.Serializer) (*FlowStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	s := NewFlowStore(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFlowStore wraps an open database. A nil serializer selects
// serialization.DefaultSerializer.
func NewFlowStore(db *sql.DB, serializer *serialization.Serializer) *FlowStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &FlowStore{
		db:         db,
		serializer: serializer,
		tableName:  "agent_flows",
	}
}

// WithTableName overrides the table name. Only letters, digits and
// underscores are accepted; anything else keeps the current name.
func (s *FlowStore) WithTableName(name string) *FlowStore {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// CreateTables creates the flow table if it does not exist.
func (s *FlowStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Get loads the named flow.
func (s *FlowStore) Get(ctx context.Context, name string) (*flow.Flow, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE name = ?", s.tableName)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := s.db.QueryContext(ctx, query)
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
		INSERT INTO %s (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, f.Name, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save flow %q: %w", f.Name, err)
	}
	return nil
}

// Rename moves a flow to newName inside one transaction. The stored blob is
// rewritten so the embedded name follows the key.
func (s *FlowStore) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if !flow.ValidName(newName) {
		return "", fmt.Errorf("%w: %q", flow.ErrInvalidFlowName, newName)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin rename: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT data FROM %s WHERE name = ?", s.tableName), oldName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

	query := fmt.Sprintf("UPDATE %s SET name = ?, data = ?, updated_at = ? WHERE name = ?", s.tableName)
	if _, err := tx.ExecContext(ctx, query, newName, data, time.Now().UnixMilli(), oldName); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %q", flow.ErrFlowExists, newName)
		}
		return "", fmt.Errorf("failed to rename flow %q: %w", oldName, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit rename: %w", err)
	}
	return newName, nil
}

// Remove deletes the named flow.
func (s *FlowStore) Remove(ctx context.Context, name string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to remove flow %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", flow.ErrFlowNotFound, name)
	}
	return nil
}

// Close closes the database connection
func (s *FlowStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *FlowStore) decode(name string, data []byte) (*flow.Flow, error) {
	f, err := s.serializer.DecodeFlow(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize flow %q: %w", name, err)
	}
	f.Name = name
	return f, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
