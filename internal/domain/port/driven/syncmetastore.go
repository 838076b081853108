package driven

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// SyncMetaStore defines the driven port for per-(repo, scope) sync progress.
type SyncMetaStore interface {
	// Get returns the recorded progress, or (nil, nil) when the
	// (repo, scope) pair has never synced.
	Get(ctx context.Context, repo string, scope model.SyncScope) (*model.SyncMeta, error)

	Put(ctx context.Context, meta model.SyncMeta) error

	// List returns every recorded (repo, scope) row, ordered by repo
	// then scope.
	List(ctx context.Context) ([]model.SyncMeta, error)

	// Delete drops the progress row so the next sync starts from scratch.
	Delete(ctx context.Context, repo string, scope model.SyncScope) error
}
