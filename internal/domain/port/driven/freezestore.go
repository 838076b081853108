package driven

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// FreezeStore defines the driven port for freeze tombstones.
// Freezing an already-frozen target refreshes its frozen_at timestamp.
type FreezeStore interface {
	Freeze(ctx context.Context, f model.Freeze) error

	// Unfreeze removes the tombstone. Returns fwerr.ErrNotFound if the
	// target was not frozen.
	Unfreeze(ctx context.Context, repo string, pr int, kind model.FreezeKind, targetID string) error

	// List returns freezes for a repo, or all repos when repo is empty.
	List(ctx context.Context, repo string) ([]model.Freeze, error)

	// ForRepos returns every freeze touching any of the given repos.
	ForRepos(ctx context.Context, repos []string) ([]model.Freeze, error)
}
