package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// Compile-time interface satisfaction check.
var _ driven.EntryStore = (*EntryRepo)(nil)

// EntryRepo is the SQLite implementation of the EntryStore port interface.
type EntryRepo struct {
	db *DB
}

// NewEntryRepo creates a new EntryRepo backed by the given DB.
func NewEntryRepo(db *DB) *EntryRepo {
	return &EntryRepo{db: db}
}

const entryColumns = `repo, gh_id, short_id, pr, type, subtype, author, body, state,
	       file, line, thread_id, thread_resolved, created_at, updated_at, captured_at, url,
	       pr_title, pr_state, pr_author, pr_branch, pr_labels,
	       graphite, file_provenance, file_activity_after`

const upsertEntryQuery = `
	INSERT INTO entries (
		repo, gh_id, short_id, pr, type, subtype, author, body, state,
		file, line, thread_id, thread_resolved, created_at, updated_at, captured_at, url,
		pr_title, pr_state, pr_author, pr_branch, pr_labels,
		graphite, file_provenance, file_activity_after
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(repo, gh_id) DO UPDATE SET
		body = excluded.body,
		state = excluded.state,
		file = excluded.file,
		line = excluded.line,
		thread_id = excluded.thread_id,
		thread_resolved = excluded.thread_resolved,
		updated_at = excluded.updated_at,
		url = excluded.url,
		pr_title = excluded.pr_title,
		pr_state = excluded.pr_state,
		pr_author = excluded.pr_author,
		pr_branch = excluded.pr_branch,
		pr_labels = excluded.pr_labels,
		graphite = COALESCE(excluded.graphite, entries.graphite),
		file_provenance = COALESCE(excluded.file_provenance, entries.file_provenance),
		file_activity_after = COALESCE(excluded.file_activity_after, entries.file_activity_after)
`

// InsertEntries upserts the batch in a single transaction. Rows that already
// existed refresh their denormalized PR context and thread resolution but
// keep their original created_at, captured_at, and short_id, and do not
// count toward the returned total.
func (r *EntryRepo) InsertEntries(ctx context.Context, entries []model.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const existsQuery = `SELECT EXISTS(SELECT 1 FROM entries WHERE repo = ? AND gh_id = ?)`

	added := 0
	for _, e := range entries {
		var exists int
		if err := tx.QueryRowContext(ctx, existsQuery, e.Repo, e.GHID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check entry %s %s: %w", e.Repo, e.GHID, err)
		}

		args, err := entryArgs(e)
		if err != nil {
			return 0, fmt.Errorf("encode entry %s %s: %w", e.Repo, e.GHID, err)
		}
		if _, err := tx.ExecContext(ctx, upsertEntryQuery, args...); err != nil {
			return 0, fmt.Errorf("upsert entry %s %s: %w", e.Repo, e.GHID, err)
		}

		if exists == 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit entries: %w", err)
	}

	return added, nil
}

// UpdateEntry replaces the mutable fields of a stored entry.
func (r *EntryRepo) UpdateEntry(ctx context.Context, e model.Entry) error {
	const query = `
		UPDATE entries SET
			short_id = ?, pr = ?, type = ?, subtype = ?, author = ?, body = ?, state = ?,
			file = ?, line = ?, thread_id = ?, thread_resolved = ?,
			created_at = ?, updated_at = ?, captured_at = ?, url = ?,
			pr_title = ?, pr_state = ?, pr_author = ?, pr_branch = ?, pr_labels = ?,
			graphite = ?, file_provenance = ?, file_activity_after = ?
		WHERE repo = ? AND gh_id = ?
	`

	args, err := entryArgs(e)
	if err != nil {
		return fmt.Errorf("encode entry %s %s: %w", e.Repo, e.GHID, err)
	}
	// entryArgs orders the key columns first; UPDATE wants them last.
	update := append(args[2:], e.Repo, e.GHID)

	result, err := r.db.Writer.ExecContext(ctx, query, update...)
	if err != nil {
		return fmt.Errorf("update entry %s %s: %w", e.Repo, e.GHID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update entry %s %s: %w", e.Repo, e.GHID, fwerr.ErrNotFound)
	}

	return nil
}

// QueryEntries returns entries matching the SQL-expressible filter fields,
// newest first with gh_id as the tiebreaker.
func (r *EntryRepo) QueryEntries(ctx context.Context, f model.Filter) ([]model.Entry, error) {
	where, args := buildEntryWhere(f)

	query := `SELECT ` + entryColumns + ` FROM entries`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC, gh_id ASC"

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// CountEntries returns the number of rows matching the SQL-expressible
// filter fields.
func (r *EntryRepo) CountEntries(ctx context.Context, f model.Filter) (int, error) {
	where, args := buildEntryWhere(f)

	query := `SELECT COUNT(*) FROM entries`
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}

	return count, nil
}

// GetEntry fetches one entry by repo and full GitHub id.
func (r *EntryRepo) GetEntry(ctx context.Context, repo, ghID string) (*model.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE repo = ? AND gh_id = ?`

	e, err := scanEntry(r.db.Reader.QueryRowContext(ctx, query, repo, ghID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s %s: %w", repo, ghID, fwerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s %s: %w", repo, ghID, err)
	}

	return e, nil
}

// EntriesForPR returns every stored entry for one pull request, newest first.
func (r *EntryRepo) EntriesForPR(ctx context.Context, repo string, pr int) ([]model.Entry, error) {
	return r.QueryEntries(ctx, model.Filter{ExactRepo: repo, PRs: []int{pr}})
}

// Repos returns the distinct repo names present in the store, sorted.
func (r *EntryRepo) Repos(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT repo FROM entries ORDER BY repo`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repos: %w", err)
	}

	return repos, nil
}

// buildEntryWhere translates the SQL-expressible filter fields into a WHERE
// clause. Regex, freeze, and orphan refinements stay client-side.
func buildEntryWhere(f model.Filter) (string, []any) {
	var conds []string
	var args []any

	switch {
	case f.ExactRepo != "":
		conds = append(conds, "repo = ?")
		args = append(args, f.ExactRepo)
	case f.Repo != "":
		conds = append(conds, "repo LIKE ?")
		args = append(args, "%"+f.Repo+"%")
	}

	if len(f.PRs) > 0 {
		conds = append(conds, "pr IN ("+placeholders(len(f.PRs))+")")
		for _, pr := range f.PRs {
			args = append(args, pr)
		}
	}

	if len(f.Types) > 0 {
		conds = append(conds, "type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}

	if len(f.States) > 0 {
		conds = append(conds, "pr_state IN ("+placeholders(len(f.States))+")")
		for _, s := range f.States {
			args = append(args, string(s))
		}
	}

	if f.Label != "" {
		conds = append(conds, "pr_labels LIKE ?")
		args = append(args, "%"+f.Label+"%")
	}

	if f.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, storeTime(*f.Since))
	}

	if f.Before != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, storeTime(*f.Before))
	}

	if f.Author != "" {
		conds = append(conds, "author = ? COLLATE NOCASE")
		args = append(args, f.Author)
	}

	if f.ID != "" {
		conds = append(conds, "gh_id = ?")
		args = append(args, f.ID)
	}

	return strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// entryArgs flattens an entry into upsert argument order: the (repo, gh_id)
// key first, then the remaining columns.
func entryArgs(e model.Entry) ([]any, error) {
	labels := e.PRLabels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("marshal pr_labels: %w", err)
	}

	graphite, err := marshalNullable(e.Graphite)
	if err != nil {
		return nil, fmt.Errorf("marshal graphite: %w", err)
	}
	provenance, err := marshalNullable(e.FileProvenance)
	if err != nil {
		return nil, fmt.Errorf("marshal file_provenance: %w", err)
	}
	activity, err := marshalNullable(e.FileActivityAfter)
	if err != nil {
		return nil, fmt.Errorf("marshal file_activity_after: %w", err)
	}

	var resolved any
	if e.ThreadResolved != nil {
		resolved = boolToInt(*e.ThreadResolved)
	}

	var updatedAt any
	if e.UpdatedAt != nil {
		updatedAt = storeTime(*e.UpdatedAt)
	}

	return []any{
		e.Repo, e.GHID, e.ShortID, e.PR, string(e.Type), string(e.Subtype),
		e.Author, e.Body, e.State, e.File, e.Line, e.ThreadID, resolved,
		storeTime(e.CreatedAt), updatedAt, storeTime(e.CapturedAt), e.URL,
		e.PRTitle, string(e.PRState), e.PRAuthor, e.PRBranch, string(labelsJSON),
		graphite, provenance, activity,
	}, nil
}

func scanEntry(s scanner) (*model.Entry, error) {
	var e model.Entry
	var entryType, subtype, prState, labelsJSON string
	var resolved sql.NullInt64
	var createdAt, capturedAt string
	var updatedAt sql.NullString
	var graphite, provenance, activity sql.NullString

	err := s.Scan(
		&e.Repo, &e.GHID, &e.ShortID, &e.PR, &entryType, &subtype,
		&e.Author, &e.Body, &e.State, &e.File, &e.Line, &e.ThreadID, &resolved,
		&createdAt, &updatedAt, &capturedAt, &e.URL,
		&e.PRTitle, &prState, &e.PRAuthor, &e.PRBranch, &labelsJSON,
		&graphite, &provenance, &activity,
	)
	if err != nil {
		return nil, err
	}

	e.Type = model.EntryType(entryType)
	e.Subtype = model.EntrySubtype(subtype)
	e.PRState = model.PRState(prState)

	if resolved.Valid {
		b := resolved.Int64 != 0
		e.ThreadResolved = &b
	}

	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	e.CapturedAt, err = parseTime(capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}
	if updatedAt.Valid {
		t, err := parseTime(updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		e.UpdatedAt = &t
	}

	if err := json.Unmarshal([]byte(labelsJSON), &e.PRLabels); err != nil {
		return nil, fmt.Errorf("unmarshal pr_labels: %w", err)
	}
	if len(e.PRLabels) == 0 {
		e.PRLabels = nil
	}

	if err := unmarshalNullable(graphite, &e.Graphite); err != nil {
		return nil, fmt.Errorf("unmarshal graphite: %w", err)
	}
	if err := unmarshalNullable(provenance, &e.FileProvenance); err != nil {
		return nil, fmt.Errorf("unmarshal file_provenance: %w", err)
	}
	if err := unmarshalNullable(activity, &e.FileActivityAfter); err != nil {
		return nil, fmt.Errorf("unmarshal file_activity_after: %w", err)
	}

	return &e, nil
}

// marshalNullable encodes a pointer enrichment block as JSON, mapping a nil
// pointer to SQL NULL.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// unmarshalNullable decodes a nullable JSON column into a **T destination,
// leaving it nil for SQL NULL.
func unmarshalNullable[T any](col sql.NullString, dest **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return err
	}
	*dest = &v
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// storeTime formats a timestamp as fixed-width UTC text so lexicographic
// comparison in SQL matches chronological order.
func storeTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
