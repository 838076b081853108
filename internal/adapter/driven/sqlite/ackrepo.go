package sqlite

import (
	"context"
	"fmt"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// Compile-time interface satisfaction check.
var _ driven.AckStore = (*AckRepo)(nil)

// AckRepo is the SQLite implementation of the AckStore port interface.
type AckRepo struct {
	db *DB
}

// NewAckRepo creates a new AckRepo backed by the given DB.
func NewAckRepo(db *DB) *AckRepo {
	return &AckRepo{db: db}
}

// Ack records an acknowledgement. Re-acking an already acked comment leaves
// the original row untouched and returns created=false.
func (r *AckRepo) Ack(ctx context.Context, ack model.Ack) (bool, error) {
	const query = `
		INSERT INTO acks (repo, comment_id, pr, acked_at, acked_by, reaction_added)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo, comment_id) DO NOTHING
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		ack.Repo, ack.CommentID, ack.PR, storeTime(ack.AckedAt), ack.AckedBy,
		boolToInt(ack.ReactionAdded),
	)
	if err != nil {
		return false, fmt.Errorf("ack %s %s: %w", ack.Repo, ack.CommentID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows > 0, nil
}

// IsAcked reports whether the (repo, comment) pair has been acknowledged.
func (r *AckRepo) IsAcked(ctx context.Context, repo, commentID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM acks WHERE repo = ? AND comment_id = ?)`

	var exists int
	if err := r.db.Reader.QueryRowContext(ctx, query, repo, commentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ack %s %s: %w", repo, commentID, err)
	}

	return exists != 0, nil
}

// List returns acks for a repo, or for all repos when repo is empty,
// newest first.
func (r *AckRepo) List(ctx context.Context, repo string) ([]model.Ack, error) {
	query := `SELECT repo, comment_id, pr, acked_at, acked_by, reaction_added FROM acks`
	var args []any
	if repo != "" {
		query += ` WHERE repo = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY acked_at DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list acks: %w", err)
	}
	defer rows.Close()

	var acks []model.Ack
	for rows.Next() {
		var ack model.Ack
		var ackedAt string
		var reactionAdded int

		if err := rows.Scan(&ack.Repo, &ack.CommentID, &ack.PR, &ackedAt, &ack.AckedBy, &reactionAdded); err != nil {
			return nil, fmt.Errorf("scan ack: %w", err)
		}

		ack.AckedAt, err = parseTime(ackedAt)
		if err != nil {
			return nil, fmt.Errorf("parse acked_at: %w", err)
		}
		ack.ReactionAdded = reactionAdded != 0

		acks = append(acks, ack)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acks: %w", err)
	}

	return acks, nil
}

// Remove deletes an ack so the comment counts as unaddressed again.
func (r *AckRepo) Remove(ctx context.Context, repo, commentID string) error {
	const query = `DELETE FROM acks WHERE repo = ? AND comment_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, repo, commentID)
	if err != nil {
		return fmt.Errorf("remove ack %s %s: %w", repo, commentID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ack %s %s: %w", repo, commentID, fwerr.ErrNotFound)
	}

	return nil
}

// AckedSet returns the acked comment ids for a repo as a set.
func (r *AckRepo) AckedSet(ctx context.Context, repo string) (map[string]bool, error) {
	const query = `SELECT comment_id FROM acks WHERE repo = ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, repo)
	if err != nil {
		return nil, fmt.Errorf("load acked set: %w", err)
	}
	defer rows.Close()

	acked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan acked id: %w", err)
		}
		acked[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acked ids: %w", err)
	}

	return acked, nil
}
