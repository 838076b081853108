package driven

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// EntryStore defines the driven port for activity entry persistence.
// Entries are keyed by (repo, gh_id); InsertEntries upserts and reports how
// many rows were genuinely new, so a repeated sync of unchanged history
// counts zero.
type EntryStore interface {
	// InsertEntries upserts the batch in one transaction. Existing rows keep
	// their identity but refresh the denormalized PR context, thread
	// resolution, and updated_at.
	InsertEntries(ctx context.Context, entries []model.Entry) (added int, err error)

	// UpdateEntry replaces the stored row for (entry.Repo, entry.GHID).
	// Returns fwerr.ErrNotFound if no such row exists.
	UpdateEntry(ctx context.Context, entry model.Entry) error

	// QueryEntries returns entries matching the SQL-expressible part of the
	// filter, newest first (created_at DESC, gh_id ASC). Client-side
	// refinements and pagination are the caller's concern.
	QueryEntries(ctx context.Context, f model.Filter) ([]model.Entry, error)

	// GetEntry fetches a single entry by repo and full GitHub id.
	// Returns fwerr.ErrNotFound if absent.
	GetEntry(ctx context.Context, repo, ghID string) (*model.Entry, error)

	// EntriesForPR returns every stored entry for one pull request,
	// newest first.
	EntriesForPR(ctx context.Context, repo string, pr int) ([]model.Entry, error)

	// CountEntries returns the number of rows matching the SQL-expressible
	// part of the filter.
	CountEntries(ctx context.Context, f model.Filter) (int, error)

	// Repos returns the distinct repo names present in the store.
	Repos(ctx context.Context) ([]string, error)
}
