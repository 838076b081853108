package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

func TestEntryRepo_InsertEntries_CountsOnlyNewRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	first := makeEntry("acme/api", "IC_001", 42)
	second := makeEntry("acme/api", "IC_002", 42)

	added, err := repo.InsertEntries(ctx, []model.Entry{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// A repeated sync of unchanged history adds nothing.
	added, err = repo.InsertEntries(ctx, []model.Entry{first, second})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	third := makeEntry("acme/api", "IC_003", 42)
	added, err = repo.InsertEntries(ctx, []model.Entry{second, third})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestEntryRepo_InsertEntries_SameIDDifferentRepo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	a := makeEntry("acme/api", "IC_001", 42)
	b := makeEntry("acme/web", "IC_001", 7)

	added, err := repo.InsertEntries(ctx, []model.Entry{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, added, "identity is scoped to (repo, gh_id)")
}

func TestEntryRepo_InsertEntries_RefreshesDenormalizedContext(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	e := makeEntry("acme/api", "PRRC_001", 42)
	e.Subtype = model.SubtypeReviewComment
	e.ThreadID = "PRRT_001"
	e.ThreadResolved = boolPtr(false)

	_, err := repo.InsertEntries(ctx, []model.Entry{e})
	require.NoError(t, err)

	// The PR merged and the thread got resolved upstream.
	updated := e
	updated.Body = "edited body"
	updated.ThreadResolved = boolPtr(true)
	updated.PRState = model.PRStateMerged
	updated.PRTitle = "Add retry logic (rebased)"
	updated.CapturedAt = baseTime.Add(time.Hour)

	added, err := repo.InsertEntries(ctx, []model.Entry{updated})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	got, err := repo.GetEntry(ctx, "acme/api", "PRRC_001")
	require.NoError(t, err)

	assert.Equal(t, "edited body", got.Body)
	require.NotNil(t, got.ThreadResolved)
	assert.True(t, *got.ThreadResolved)
	assert.Equal(t, model.PRStateMerged, got.PRState)
	assert.Equal(t, "Add retry logic (rebased)", got.PRTitle)
	assert.Equal(t, e.CapturedAt, got.CapturedAt, "first capture time is preserved")
}

func TestEntryRepo_InsertEntries_PreservesEnrichment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	e := makeEntry("acme/api", "IC_001", 42)
	e.Graphite = &model.StackInfo{StackID: "stack-1", StackPosition: 2, StackSize: 3, ParentPR: 41}

	_, err := repo.InsertEntries(ctx, []model.Entry{e})
	require.NoError(t, err)

	// Re-sync without enrichment must not wipe the stored block.
	plain := makeEntry("acme/api", "IC_001", 42)
	_, err = repo.InsertEntries(ctx, []model.Entry{plain})
	require.NoError(t, err)

	got, err := repo.GetEntry(ctx, "acme/api", "IC_001")
	require.NoError(t, err)
	require.NotNil(t, got.Graphite)
	assert.Equal(t, "stack-1", got.Graphite.StackID)
	assert.Equal(t, 2, got.Graphite.StackPosition)
}

func TestEntryRepo_EnrichmentRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	latest := baseTime.Add(2 * time.Hour)
	e := makeEntry("acme/api", "PRRC_001", 42)
	e.Subtype = model.SubtypeReviewComment
	e.File = "internal/retry/backoff.go"
	e.Line = 120
	e.UpdatedAt = timePtr(baseTime.Add(time.Hour))
	e.Graphite = &model.StackInfo{StackID: "stack-1", StackPosition: 1, StackSize: 2}
	e.FileProvenance = &model.FileProvenance{
		OriginPR: 40, OriginBranch: "feat/base", OriginCommit: "abc123", StackPosition: 1,
	}
	e.FileActivityAfter = &model.FileActivity{
		Modified: true, CommitsTouchingFile: 2, LatestCommit: "def456",
		LatestCommitAt: &latest,
	}

	_, err := repo.InsertEntries(ctx, []model.Entry{e})
	require.NoError(t, err)

	got, err := repo.GetEntry(ctx, "acme/api", "PRRC_001")
	require.NoError(t, err)

	assert.Equal(t, e.File, got.File)
	assert.Equal(t, e.Line, got.Line)
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, *e.UpdatedAt, *got.UpdatedAt)
	assert.Equal(t, e.Graphite, got.Graphite)
	assert.Equal(t, e.FileProvenance, got.FileProvenance)
	require.NotNil(t, got.FileActivityAfter)
	assert.True(t, got.FileActivityAfter.Modified)
	assert.Equal(t, 2, got.FileActivityAfter.CommitsTouchingFile)
	require.NotNil(t, got.FileActivityAfter.LatestCommitAt)
	assert.Equal(t, latest, *got.FileActivityAfter.LatestCommitAt)

	// Absent blocks stay nil rather than decoding to zero structs.
	bare := makeEntry("acme/api", "IC_002", 42)
	_, err = repo.InsertEntries(ctx, []model.Entry{bare})
	require.NoError(t, err)

	gotBare, err := repo.GetEntry(ctx, "acme/api", "IC_002")
	require.NoError(t, err)
	assert.Nil(t, gotBare.Graphite)
	assert.Nil(t, gotBare.FileProvenance)
	assert.Nil(t, gotBare.FileActivityAfter)
	assert.Nil(t, gotBare.ThreadResolved)
	assert.Nil(t, gotBare.UpdatedAt)
}

func TestEntryRepo_QueryEntries_Ordering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	oldest := makeEntry("acme/api", "IC_b", 42)
	oldest.CreatedAt = baseTime.Add(-2 * time.Hour)
	middle := makeEntry("acme/api", "IC_c", 42)
	middle.CreatedAt = baseTime.Add(-time.Hour)
	// Two entries at the same instant tie-break on gh_id ascending.
	newestA := makeEntry("acme/api", "IC_a", 42)
	newestZ := makeEntry("acme/api", "IC_z", 42)

	_, err := repo.InsertEntries(ctx, []model.Entry{oldest, newestZ, middle, newestA})
	require.NoError(t, err)

	got, err := repo.QueryEntries(ctx, model.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "IC_a", got[0].GHID)
	assert.Equal(t, "IC_z", got[1].GHID)
	assert.Equal(t, "IC_c", got[2].GHID)
	assert.Equal(t, "IC_b", got[3].GHID)
}

func TestEntryRepo_QueryEntries_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	comment := makeEntry("acme/api", "IC_001", 42)
	review := makeEntry("acme/api", "PRR_001", 42)
	review.Type = model.EntryTypeReview
	review.Subtype = ""
	review.State = string(model.ReviewStateChangesRequested)
	review.Author = "Carol"
	review.CreatedAt = baseTime.Add(-30 * time.Minute)
	mergedPR := makeEntry("acme/api", "IC_002", 40)
	mergedPR.PRState = model.PRStateMerged
	mergedPR.PRLabels = []string{"bug", "urgent"}
	mergedPR.CreatedAt = baseTime.Add(-2 * time.Hour)
	otherRepo := makeEntry("beta/tools", "IC_003", 7)
	otherRepo.CreatedAt = baseTime.Add(-3 * time.Hour)

	_, err := repo.InsertEntries(ctx, []model.Entry{comment, review, mergedPR, otherRepo})
	require.NoError(t, err)

	tests := []struct {
		name    string
		filter  model.Filter
		wantIDs []string
	}{
		{"no filter returns everything", model.Filter{}, []string{"IC_001", "PRR_001", "IC_002", "IC_003"}},
		{"exact repo", model.Filter{ExactRepo: "acme/api"}, []string{"IC_001", "PRR_001", "IC_002"}},
		{"repo substring", model.Filter{Repo: "beta"}, []string{"IC_003"}},
		{"pr number", model.Filter{ExactRepo: "acme/api", PRs: []int{40}}, []string{"IC_002"}},
		{"type", model.Filter{Types: []model.EntryType{model.EntryTypeReview}}, []string{"PRR_001"}},
		{"pr state", model.Filter{States: []model.PRState{model.PRStateMerged}}, []string{"IC_002"}},
		{"label partial match", model.Filter{Label: "urg"}, []string{"IC_002"}},
		{"since cutoff", model.Filter{Since: timePtr(baseTime.Add(-time.Hour))}, []string{"IC_001", "PRR_001"}},
		{"before cutoff", model.Filter{Before: timePtr(baseTime.Add(-time.Hour))}, []string{"IC_002", "IC_003"}},
		{"author case-insensitive", model.Filter{Author: "carol"}, []string{"PRR_001"}},
		{"full id", model.Filter{ID: "IC_002"}, []string{"IC_002"}},
		{"no match", model.Filter{ExactRepo: "acme/api", PRs: []int{999}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryEntries(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, e := range got {
				ids = append(ids, e.GHID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestEntryRepo_CountEntries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	_, err := repo.InsertEntries(ctx, []model.Entry{
		makeEntry("acme/api", "IC_001", 42),
		makeEntry("acme/api", "IC_002", 42),
		makeEntry("beta/tools", "IC_003", 7),
	})
	require.NoError(t, err)

	count, err := repo.CountEntries(ctx, model.Filter{ExactRepo: "acme/api"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountEntries(ctx, model.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEntryRepo_GetEntry_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)

	_, err := repo.GetEntry(context.Background(), "acme/api", "IC_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, fwerr.ErrNotFound)
}

func TestEntryRepo_UpdateEntry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	e := makeEntry("acme/api", "IC_001", 42)
	_, err := repo.InsertEntries(ctx, []model.Entry{e})
	require.NoError(t, err)

	e.FileActivityAfter = &model.FileActivity{Modified: true, CommitsTouchingFile: 1, LatestCommit: "abc"}
	require.NoError(t, repo.UpdateEntry(ctx, e))

	got, err := repo.GetEntry(ctx, "acme/api", "IC_001")
	require.NoError(t, err)
	require.NotNil(t, got.FileActivityAfter)
	assert.Equal(t, "abc", got.FileActivityAfter.LatestCommit)

	missing := makeEntry("acme/api", "IC_missing", 42)
	err = repo.UpdateEntry(ctx, missing)
	assert.ErrorIs(t, err, fwerr.ErrNotFound)
}

func TestEntryRepo_EntriesForPR(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	inPR := makeEntry("acme/api", "IC_001", 42)
	other := makeEntry("acme/api", "IC_002", 43)
	otherRepo := makeEntry("beta/tools", "IC_003", 42)

	_, err := repo.InsertEntries(ctx, []model.Entry{inPR, other, otherRepo})
	require.NoError(t, err)

	got, err := repo.EntriesForPR(ctx, "acme/api", 42)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "IC_001", got[0].GHID)
}

func TestEntryRepo_Repos(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEntryRepo(db)
	ctx := context.Background()

	_, err := repo.InsertEntries(ctx, []model.Entry{
		makeEntry("beta/tools", "IC_001", 7),
		makeEntry("acme/api", "IC_002", 42),
		makeEntry("acme/api", "IC_003", 42),
	})
	require.NoError(t, err)

	repos, err := repo.Repos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/api", "beta/tools"}, repos)
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }
