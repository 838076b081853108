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

func TestPRRepo_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	pr := makePRMeta("acme/api", 42, model.PRStateOpen)
	require.NoError(t, repo.Upsert(ctx, pr))

	got, err := repo.Get(ctx, "acme/api", 42)
	require.NoError(t, err)

	assert.Equal(t, "acme/api", got.Repo)
	assert.Equal(t, 42, got.Number)
	assert.Equal(t, model.PRStateOpen, got.State)
	assert.False(t, got.IsDraft)
	assert.Equal(t, "Add retry logic", got.Title)
	assert.Equal(t, "bob", got.Author)
	assert.Equal(t, "feat/retry", got.Branch)
	assert.Equal(t, "main", got.BaseRef)
	assert.Equal(t, []string{"backend"}, got.Labels)
	assert.Equal(t, []string{"alice"}, got.Assignees)
	assert.Equal(t, pr.CreatedAt, got.CreatedAt)
	assert.Equal(t, pr.UpdatedAt, got.UpdatedAt)
}

func TestPRRepo_Upsert_ReplacesExisting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	pr := makePRMeta("acme/api", 42, model.PRStateOpen)
	require.NoError(t, repo.Upsert(ctx, pr))

	pr.State = model.PRStateMerged
	pr.Title = "Add retry logic (final)"
	pr.Labels = nil
	pr.UpdatedAt = baseTime.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, pr))

	got, err := repo.Get(ctx, "acme/api", 42)
	require.NoError(t, err)
	assert.Equal(t, model.PRStateMerged, got.State)
	assert.Equal(t, "Add retry logic (final)", got.Title)
	assert.Nil(t, got.Labels)
	assert.Equal(t, baseTime.Add(time.Hour), got.UpdatedAt)
}

func TestPRRepo_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)

	_, err := repo.Get(context.Background(), "acme/api", 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, fwerr.ErrNotFound)
}

func TestPRRepo_ListByRepo_OrdersByUpdatedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	older := makePRMeta("acme/api", 41, model.PRStateOpen)
	older.UpdatedAt = baseTime.Add(-time.Hour)
	newer := makePRMeta("acme/api", 42, model.PRStateOpen)
	elsewhere := makePRMeta("beta/tools", 7, model.PRStateOpen)

	require.NoError(t, repo.Upsert(ctx, older))
	require.NoError(t, repo.Upsert(ctx, newer))
	require.NoError(t, repo.Upsert(ctx, elsewhere))

	got, err := repo.ListByRepo(ctx, "acme/api")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 42, got[0].Number)
	assert.Equal(t, 41, got[1].Number)
}

func TestPRRepo_ListByStates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makePRMeta("acme/api", 1, model.PRStateOpen)))
	require.NoError(t, repo.Upsert(ctx, makePRMeta("acme/api", 2, model.PRStateMerged)))
	require.NoError(t, repo.Upsert(ctx, makePRMeta("acme/api", 3, model.PRStateClosed)))
	require.NoError(t, repo.Upsert(ctx, makePRMeta("beta/tools", 4, model.PRStateDraft)))

	terminal, err := repo.ListByStates(ctx, []model.PRState{model.PRStateClosed, model.PRStateMerged})
	require.NoError(t, err)
	require.Len(t, terminal, 2)

	none, err := repo.ListByStates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPRRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makePRMeta("acme/api", 1, model.PRStateOpen)))
	require.NoError(t, repo.Upsert(ctx, makePRMeta("beta/tools", 2, model.PRStateDraft)))

	got, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPRRepo_DraftRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	pr := makePRMeta("acme/api", 42, model.PRStateDraft)
	pr.IsDraft = true
	require.NoError(t, repo.Upsert(ctx, pr))

	got, err := repo.Get(ctx, "acme/api", 42)
	require.NoError(t, err)
	assert.True(t, got.IsDraft)
	assert.Equal(t, model.PRStateDraft, got.State)
}
