// Package graphite reads stacked-branch metadata from the Graphite CLI.
//
// The provider shells to gt and gh instead of talking to the Graphite API:
// both binaries are already authenticated on a machine that uses stacking,
// and gt state is the only stable source for the local stack graph. Every
// failure degrades to "no stacks"; stack data is an enrichment, and a repo
// without Graphite must behave exactly like a repo with no stacks.
package graphite

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// commandTimeout bounds each subprocess. Stack detection runs inline during
// sync enrichment, so a hung gt must not stall the whole run.
const commandTimeout = 5 * time.Second

type runnerFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Provider implements driven.StackProvider for one repository working tree.
// The stack graph is read once per process and cached until ClearCache.
type Provider struct {
	dir  string
	repo string
	run  runnerFunc
	look func(file string) (string, error)

	mu     sync.Mutex
	loaded bool
	ok     bool
	stacks []model.Stack
}

var _ driven.StackProvider = (*Provider)(nil)

// New returns a Provider reading stack state from the working tree at dir,
// labelling stacks with the owner/name slug repo.
func New(dir, repo string) *Provider {
	return &Provider{dir: dir, repo: repo, run: runCommand, look: exec.LookPath}
}

// IsAvailable reports whether gt is installed and its state is readable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if _, err := p.look("gt"); err != nil {
		return false
	}
	p.load(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ok
}

// Stacks returns every stack in the repository, branches trunk-first.
func (p *Provider) Stacks(ctx context.Context) ([]model.Stack, error) {
	return p.load(ctx), nil
}

// StackForBranch locates the stack containing branch. The returned copy has
// the matching branch marked Current; callers may modify it freely.
func (p *Provider) StackForBranch(ctx context.Context, branch string) (*model.StackLocation, error) {
	for _, s := range p.load(ctx) {
		b, ok := s.BranchByName(branch)
		if !ok {
			continue
		}
		marked := s
		marked.Branches = make([]model.StackBranch, len(s.Branches))
		copy(marked.Branches, s.Branches)
		marked.Branches[b.Position-1].Current = true
		return &model.StackLocation{Stack: marked, Position: b.Position, Branch: branch}, nil
	}
	return nil, nil
}

// StackPRs collects PR numbers around branch. Up and down are exclusive of
// the branch itself; all covers the whole stack.
func (p *Provider) StackPRs(ctx context.Context, branch string, dir model.StackDirection) (*model.StackPRs, error) {
	switch dir {
	case model.StackUp, model.StackDown, model.StackAll:
	default:
		return nil, fmt.Errorf("%w: unknown stack direction %q", fwerr.ErrValidation, dir)
	}

	loc, err := p.StackForBranch(ctx, branch)
	if err != nil || loc == nil {
		return nil, err
	}

	res := &model.StackPRs{Stack: loc.Stack, Direction: dir}
	for _, b := range loc.Stack.Branches {
		if b.Name == branch {
			res.CurrentPR = b.PR
		}
		if b.PR == 0 {
			continue
		}
		switch {
		case dir == model.StackAll,
			dir == model.StackUp && b.Position > loc.Position,
			dir == model.StackDown && b.Position < loc.Position:
			res.PRs = append(res.PRs, b.PR)
		}
	}
	return res, nil
}

// ClearCache drops the cached stack graph so the next call re-reads it.
func (p *Provider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.ok = false
	p.stacks = nil
}

// load builds the stack set on first use. Failures are cached too: a broken
// gt would otherwise be re-invoked, 5s timeout each, for every entry the
// enrichers touch.
func (p *Provider) load(ctx context.Context) []model.Stack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.stacks
	}
	p.loaded = true
	p.stacks, p.ok = p.build(ctx)
	return p.stacks
}

func (p *Provider) build(ctx context.Context) ([]model.Stack, bool) {
	out, err := p.run(ctx, p.dir, "gt", "state")
	if err != nil {
		slog.Debug("gt state unavailable", "dir", p.dir, "error", err)
		return nil, false
	}
	graph, err := parseState(out)
	if err != nil {
		slog.Debug("gt state unparseable", "dir", p.dir, "error", err)
		return nil, false
	}
	return buildStacks(graph, p.openPRsByBranch(ctx), p.repo), true
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "), msg, err)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}
