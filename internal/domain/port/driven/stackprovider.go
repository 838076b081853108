package driven

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// StackProvider defines the driven port for stacked-PR metadata. An
// implementation reads local tooling state for the repository it was built
// for and caches it for the life of the process. Missing or broken tooling
// degrades to nil results, never an error: stack data is an enrichment.
type StackProvider interface {
	// IsAvailable reports whether stack state can be read for the repository.
	IsAvailable(ctx context.Context) bool

	// Stacks returns every stack, branches ordered from trunk upward.
	Stacks(ctx context.Context) ([]model.Stack, error)

	// StackForBranch locates the stack containing branch, or nil when the
	// branch is not tracked by any stack.
	StackForBranch(ctx context.Context, branch string) (*model.StackLocation, error)

	// StackPRs collects PR numbers around branch in the given direction, or
	// nil when the branch is not tracked by any stack.
	StackPRs(ctx context.Context, branch string, dir model.StackDirection) (*model.StackPRs, error)

	// ClearCache drops cached state so the next call re-reads it.
	ClearCache()
}
