package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MetaStore = (*MetaRepo)(nil)

// MetaRepo is the SQLite implementation of the MetaStore port interface,
// a small key-value table for state like the last lookout timestamp.
type MetaRepo struct {
	db *DB
}

// NewMetaRepo creates a new MetaRepo backed by the given DB.
func NewMetaRepo(db *DB) *MetaRepo {
	return &MetaRepo{db: db}
}

// Get returns the value for key, or "" when unset.
func (r *MetaRepo) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM meta WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}

	return value, nil
}

// Set stores or replaces the value for key.
func (r *MetaRepo) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`

	if _, err := r.db.Writer.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (r *MetaRepo) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM meta WHERE key = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete meta %s: %w", key, err)
	}

	return nil
}
