package application

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// Enricher augments an entry with optional context blocks during sync.
// Enrichers run in registration order and must leave the entry usable on
// failure: the sync engine swallows enrichment errors and inserts the entry
// without the block.
type Enricher interface {
	Name() string

	// Enrich returns the entry with its block attached, or unchanged when
	// the enrichment does not apply.
	Enrich(ctx context.Context, e model.Entry) (model.Entry, error)
}

// StackEnricher attaches Graphite stack placement to entries whose PR branch
// is tracked by a stack.
type StackEnricher struct {
	stacks driven.StackProvider
}

// NewStackEnricher creates a StackEnricher over the given provider.
func NewStackEnricher(stacks driven.StackProvider) *StackEnricher {
	return &StackEnricher{stacks: stacks}
}

func (e *StackEnricher) Name() string { return "stack" }

// Enrich looks up the entry's PR branch in the stack set. Untracked branches
// and missing stack tooling leave the entry unchanged.
func (e *StackEnricher) Enrich(ctx context.Context, entry model.Entry) (model.Entry, error) {
	if entry.PRBranch == "" || entry.Graphite != nil {
		return entry, nil
	}

	loc, err := e.stacks.StackForBranch(ctx, entry.PRBranch)
	if err != nil || loc == nil {
		return entry, err
	}

	entry.Graphite = &model.StackInfo{
		StackID:       loc.Stack.ID,
		StackPosition: loc.Position,
		StackSize:     loc.Stack.Size(),
		ParentPR:      loc.Stack.ParentPR(entry.PRBranch),
	}
	return entry, nil
}

// ProvenanceEnricher attributes a review comment's file to the stack PR that
// introduced it, by diffing each stack branch against its parent in the local
// checkout.
type ProvenanceEnricher struct {
	stacks driven.StackProvider
	git    driven.LocalGit
	dir    string

	// changed memoizes git diff results per (base, head) for the life of
	// the enricher, one sync run.
	changed map[string][]string
}

// NewProvenanceEnricher creates a ProvenanceEnricher reading the checkout
// at dir.
func NewProvenanceEnricher(stacks driven.StackProvider, git driven.LocalGit, dir string) *ProvenanceEnricher {
	return &ProvenanceEnricher{
		stacks:  stacks,
		git:     git,
		dir:     dir,
		changed: make(map[string][]string),
	}
}

func (e *ProvenanceEnricher) Name() string { return "provenance" }

// Enrich walks the entry's stack from the trunk side up to the entry's own
// branch and attributes the commented file to the first branch whose diff
// against its parent touches it.
func (e *ProvenanceEnricher) Enrich(ctx context.Context, entry model.Entry) (model.Entry, error) {
	if !entry.IsReviewComment() || entry.File == "" || entry.PRBranch == "" {
		return entry, nil
	}
	if entry.FileProvenance != nil {
		return entry, nil
	}

	loc, err := e.stacks.StackForBranch(ctx, entry.PRBranch)
	if err != nil || loc == nil {
		return entry, err
	}

	for _, b := range loc.Stack.Branches {
		if b.Position > loc.Position {
			break
		}
		if b.Parent == "" {
			continue
		}

		files, err := e.changedFiles(ctx, b.Parent, b.Name)
		if err != nil {
			return entry, err
		}
		if !containsPath(files, entry.File) {
			continue
		}

		prov := &model.FileProvenance{
			OriginPR:      b.PR,
			OriginBranch:  b.Name,
			StackPosition: b.Position,
		}
		if fc, err := e.git.LastCommitForFile(ctx, e.dir, entry.File); err == nil && fc != nil {
			prov.OriginCommit = fc.SHA
		}
		entry.FileProvenance = prov
		return entry, nil
	}

	return entry, nil
}

func (e *ProvenanceEnricher) changedFiles(ctx context.Context, base, head string) ([]string, error) {
	key := base + ".." + head
	if files, ok := e.changed[key]; ok {
		return files, nil
	}
	files, err := e.git.ChangedFiles(ctx, e.dir, base, head)
	if err != nil {
		return nil, err
	}
	e.changed[key] = files
	return files, nil
}

func containsPath(files []string, path string) bool {
	for _, f := range files {
		if f == path {
			return true
		}
	}
	return false
}
