package application

import (
	"context"
	"fmt"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// StackService answers where the checked-out branch sits in its stack.
type StackService struct {
	git    driven.LocalGit
	stacks driven.StackProvider
	dir    string
}

// NewStackService creates a StackService for the checkout at dir. stacks may
// be nil when no repository was detected.
func NewStackService(git driven.LocalGit, stacks driven.StackProvider, dir string) *StackService {
	return &StackService{git: git, stacks: stacks, dir: dir}
}

// Current walks the stack around the checked-out branch in the given
// direction.
func (s *StackService) Current(ctx context.Context, direction model.StackDirection) (*model.StackPRs, error) {
	if s.stacks == nil || !s.stacks.IsAvailable(ctx) {
		return nil, fmt.Errorf("%w: gt is not available in this checkout", fwerr.ErrNotFound)
	}
	branch, err := s.git.CurrentBranch(ctx, s.dir)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		return nil, fmt.Errorf("%w: detached HEAD is not on a stack", fwerr.ErrNotFound)
	}

	prs, err := s.stacks.StackPRs(ctx, branch, direction)
	if err != nil {
		return nil, err
	}
	if prs == nil {
		return nil, fmt.Errorf("%w: branch %q is not part of a stack", fwerr.ErrNotFound, branch)
	}
	return prs, nil
}

// List returns every stack known to the provider.
func (s *StackService) List(ctx context.Context) ([]model.Stack, error) {
	if s.stacks == nil || !s.stacks.IsAvailable(ctx) {
		return nil, fmt.Errorf("%w: gt is not available in this checkout", fwerr.ErrNotFound)
	}
	return s.stacks.Stacks(ctx)
}
