package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncMetaStore = (*SyncMetaRepo)(nil)

// SyncMetaRepo is the SQLite implementation of the SyncMetaStore port interface.
type SyncMetaRepo struct {
	db *DB
}

// NewSyncMetaRepo creates a new SyncMetaRepo backed by the given DB.
func NewSyncMetaRepo(db *DB) *SyncMetaRepo {
	return &SyncMetaRepo{db: db}
}

// Get returns the recorded progress for a (repo, scope), or nil, nil when
// the pair has never synced.
func (r *SyncMetaRepo) Get(ctx context.Context, repo string, scope model.SyncScope) (*model.SyncMeta, error) {
	const query = `SELECT repo, scope, last_sync, cursor, pr_count FROM sync_meta WHERE repo = ? AND scope = ?`

	meta, err := scanSyncMeta(r.db.Reader.QueryRowContext(ctx, query, repo, string(scope)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync meta %s %s: %w", repo, scope, err)
	}

	return meta, nil
}

// Put inserts or replaces the progress row for (meta.Repo, meta.Scope).
func (r *SyncMetaRepo) Put(ctx context.Context, meta model.SyncMeta) error {
	const query = `
		INSERT INTO sync_meta (repo, scope, last_sync, cursor, pr_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo, scope) DO UPDATE SET
			last_sync = excluded.last_sync,
			cursor = excluded.cursor,
			pr_count = excluded.pr_count
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		meta.Repo, string(meta.Scope), storeTime(meta.LastSync), meta.Cursor, meta.PRCount,
	)
	if err != nil {
		return fmt.Errorf("put sync meta %s %s: %w", meta.Repo, meta.Scope, err)
	}

	return nil
}

// List returns every recorded (repo, scope) row, ordered by repo then scope.
func (r *SyncMetaRepo) List(ctx context.Context) ([]model.SyncMeta, error) {
	const query = `SELECT repo, scope, last_sync, cursor, pr_count FROM sync_meta ORDER BY repo, scope`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sync meta: %w", err)
	}
	defer rows.Close()

	var metas []model.SyncMeta
	for rows.Next() {
		meta, err := scanSyncMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync meta: %w", err)
		}
		metas = append(metas, *meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync meta: %w", err)
	}

	return metas, nil
}

// Delete drops the progress row so the next sync starts from scratch.
// Deleting an absent row is a no-op.
func (r *SyncMetaRepo) Delete(ctx context.Context, repo string, scope model.SyncScope) error {
	const query = `DELETE FROM sync_meta WHERE repo = ? AND scope = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, repo, string(scope)); err != nil {
		return fmt.Errorf("delete sync meta %s %s: %w", repo, scope, err)
	}

	return nil
}

func scanSyncMeta(s scanner) (*model.SyncMeta, error) {
	var meta model.SyncMeta
	var scope, lastSync string

	if err := s.Scan(&meta.Repo, &scope, &lastSync, &meta.Cursor, &meta.PRCount); err != nil {
		return nil, err
	}

	meta.Scope = model.SyncScope(scope)

	var err error
	meta.LastSync, err = parseTime(lastSync)
	if err != nil {
		return nil, fmt.Errorf("parse last_sync: %w", err)
	}

	return &meta, nil
}
