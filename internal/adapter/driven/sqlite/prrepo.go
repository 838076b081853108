package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// Compile-time interface satisfaction check.
var _ driven.PRStore = (*PRRepo)(nil)

// PRRepo is the SQLite implementation of the PRStore port interface.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

const prColumns = `repo, number, state, is_draft, title, author, branch, base_ref, url,
	       labels, assignees, created_at, updated_at`

// Upsert inserts or replaces a pull request summary. Labels and assignees are
// serialized as JSON arrays in TEXT columns.
func (r *PRRepo) Upsert(ctx context.Context, pr model.PRMeta) error {
	const query = `
		INSERT INTO pull_requests (
			repo, number, state, is_draft, title, author, branch, base_ref, url,
			labels, assignees, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo, number) DO UPDATE SET
			state = excluded.state,
			is_draft = excluded.is_draft,
			title = excluded.title,
			author = excluded.author,
			branch = excluded.branch,
			base_ref = excluded.base_ref,
			url = excluded.url,
			labels = excluded.labels,
			assignees = excluded.assignees,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`

	labelsJSON, err := marshalStrings(pr.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	assigneesJSON, err := marshalStrings(pr.Assignees)
	if err != nil {
		return fmt.Errorf("marshal assignees: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		pr.Repo, pr.Number, string(pr.State), boolToInt(pr.IsDraft),
		pr.Title, pr.Author, pr.Branch, pr.BaseRef, pr.URL,
		labelsJSON, assigneesJSON,
		storeTime(pr.CreatedAt), storeTime(pr.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert pull request %s#%d: %w", pr.Repo, pr.Number, err)
	}

	return nil
}

// Get retrieves one pull request summary.
func (r *PRRepo) Get(ctx context.Context, repo string, number int) (*model.PRMeta, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests WHERE repo = ? AND number = ?`

	pr, err := scanPRMeta(r.db.Reader.QueryRowContext(ctx, query, repo, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pull request %s#%d: %w", repo, number, fwerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pull request %s#%d: %w", repo, number, err)
	}

	return pr, nil
}

// ListByRepo returns all known PRs for a repo, most recently updated first.
func (r *PRRepo) ListByRepo(ctx context.Context, repo string) ([]model.PRMeta, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests WHERE repo = ? ORDER BY updated_at DESC`
	return r.queryPRs(ctx, query, repo)
}

// ListByStates returns PRs in any of the given states across all repos,
// most recently updated first.
func (r *PRRepo) ListByStates(ctx context.Context, states []model.PRState) ([]model.PRMeta, error) {
	if len(states) == 0 {
		return nil, nil
	}

	query := `SELECT ` + prColumns + ` FROM pull_requests WHERE state IN (` +
		placeholders(len(states)) + `) ORDER BY updated_at DESC`

	args := make([]any, len(states))
	for i, s := range states {
		args[i] = string(s)
	}

	return r.queryPRs(ctx, query, args...)
}

// ListAll returns every known PR, most recently updated first.
func (r *PRRepo) ListAll(ctx context.Context) ([]model.PRMeta, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests ORDER BY updated_at DESC`
	return r.queryPRs(ctx, query)
}

func (r *PRRepo) queryPRs(ctx context.Context, query string, args ...any) ([]model.PRMeta, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PRMeta
	for rows.Next() {
		pr, err := scanPRMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPRMeta(s scanner) (*model.PRMeta, error) {
	var pr model.PRMeta
	var state string
	var isDraft int
	var labelsJSON, assigneesJSON string
	var createdAt, updatedAt string

	err := s.Scan(
		&pr.Repo, &pr.Number, &state, &isDraft, &pr.Title, &pr.Author,
		&pr.Branch, &pr.BaseRef, &pr.URL, &labelsJSON, &assigneesJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.State = model.PRState(state)
	pr.IsDraft = isDraft != 0

	if err := json.Unmarshal([]byte(labelsJSON), &pr.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if err := json.Unmarshal([]byte(assigneesJSON), &pr.Assignees); err != nil {
		return nil, fmt.Errorf("unmarshal assignees: %w", err)
	}
	if len(pr.Labels) == 0 {
		pr.Labels = nil
	}
	if len(pr.Assignees) == 0 {
		pr.Assignees = nil
	}

	pr.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	pr.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &pr, nil
}

// marshalStrings serializes a string slice as a JSON array, normalizing nil
// to the empty array.
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
