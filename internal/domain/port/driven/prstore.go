package driven

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// PRStore defines the driven port for pull request summary persistence.
type PRStore interface {
	Upsert(ctx context.Context, pr model.PRMeta) error

	// Get returns the summary for one PR, or fwerr.ErrNotFound.
	Get(ctx context.Context, repo string, number int) (*model.PRMeta, error)

	// ListByRepo returns all known PRs for a repo, most recently
	// updated first.
	ListByRepo(ctx context.Context, repo string) ([]model.PRMeta, error)

	// ListByStates returns PRs in any of the given states across all repos.
	ListByStates(ctx context.Context, states []model.PRState) ([]model.PRMeta, error)

	ListAll(ctx context.Context) ([]model.PRMeta, error)
}
