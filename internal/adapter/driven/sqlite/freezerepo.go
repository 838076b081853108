package sqlite

import (
	"context"
	"fmt"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// Compile-time interface satisfaction check.
var _ driven.FreezeStore = (*FreezeRepo)(nil)

// FreezeRepo is the SQLite implementation of the FreezeStore port interface.
type FreezeRepo struct {
	db *DB
}

// NewFreezeRepo creates a new FreezeRepo backed by the given DB.
func NewFreezeRepo(db *DB) *FreezeRepo {
	return &FreezeRepo{db: db}
}

// Freeze inserts a tombstone, refreshing frozen_at if the target is already
// frozen.
func (r *FreezeRepo) Freeze(ctx context.Context, f model.Freeze) error {
	const query = `
		INSERT INTO freezes (repo, pr, kind, target_id, frozen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo, kind, target_id) DO UPDATE SET
			pr = excluded.pr,
			frozen_at = excluded.frozen_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		f.Repo, f.PR, string(f.Kind), f.TargetID, storeTime(f.FrozenAt),
	)
	if err != nil {
		return fmt.Errorf("freeze %s %s %s: %w", f.Repo, f.Kind, f.TargetID, err)
	}

	return nil
}

// Unfreeze removes a tombstone.
func (r *FreezeRepo) Unfreeze(ctx context.Context, repo string, pr int, kind model.FreezeKind, targetID string) error {
	const query = `DELETE FROM freezes WHERE repo = ? AND kind = ? AND target_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, repo, string(kind), targetID)
	if err != nil {
		return fmt.Errorf("unfreeze %s %s %s: %w", repo, kind, targetID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("freeze %s %s %s: %w", repo, kind, targetID, fwerr.ErrNotFound)
	}

	return nil
}

// List returns freezes for a repo, or all repos when repo is empty.
func (r *FreezeRepo) List(ctx context.Context, repo string) ([]model.Freeze, error) {
	query := `SELECT repo, pr, kind, target_id, frozen_at FROM freezes`
	var args []any
	if repo != "" {
		query += ` WHERE repo = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY repo, pr, kind, target_id`

	return r.queryFreezes(ctx, query, args...)
}

// ForRepos returns every freeze touching any of the given repos.
func (r *FreezeRepo) ForRepos(ctx context.Context, repos []string) ([]model.Freeze, error) {
	if len(repos) == 0 {
		return nil, nil
	}

	query := `SELECT repo, pr, kind, target_id, frozen_at FROM freezes WHERE repo IN (` +
		placeholders(len(repos)) + `) ORDER BY repo, pr, kind, target_id`

	args := make([]any, len(repos))
	for i, repo := range repos {
		args[i] = repo
	}

	return r.queryFreezes(ctx, query, args...)
}

func (r *FreezeRepo) queryFreezes(ctx context.Context, query string, args ...any) ([]model.Freeze, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query freezes: %w", err)
	}
	defer rows.Close()

	var freezes []model.Freeze
	for rows.Next() {
		var f model.Freeze
		var kind, frozenAt string

		if err := rows.Scan(&f.Repo, &f.PR, &kind, &f.TargetID, &frozenAt); err != nil {
			return nil, fmt.Errorf("scan freeze: %w", err)
		}

		f.Kind = model.FreezeKind(kind)
		f.FrozenAt, err = parseTime(frozenAt)
		if err != nil {
			return nil, fmt.Errorf("parse frozen_at: %w", err)
		}

		freezes = append(freezes, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate freezes: %w", err)
	}

	return freezes, nil
}
