package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaRepo_GetUnsetReturnsEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetaRepo(db)

	value, err := repo.Get(context.Background(), "lookout.last_run")
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestMetaRepo_SetGetRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetaRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "lookout.last_run", "2026-03-01T12:00:00Z"))

	value, err := repo.Get(ctx, "lookout.last_run")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", value)

	require.NoError(t, repo.Set(ctx, "lookout.last_run", "2026-03-02T09:30:00Z"))

	value, err = repo.Get(ctx, "lookout.last_run")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02T09:30:00Z", value)
}

func TestMetaRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetaRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "legacy.imported", "true"))
	require.NoError(t, repo.Delete(ctx, "legacy.imported"))

	value, err := repo.Get(ctx, "legacy.imported")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	// Deleting an absent key is a no-op.
	require.NoError(t, repo.Delete(ctx, "legacy.imported"))
}
