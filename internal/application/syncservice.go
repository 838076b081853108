// Package application contains use-case orchestration services. Services
// hold driven ports, never concrete adapters, and surface fwerr-classified
// errors untouched.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/identity"
)

const (
	// syncPageSize is the number of PRs fetched per activity page.
	syncPageSize = 50

	// maxConcurrentSyncs bounds how many repos SyncAll works in parallel.
	maxConcurrentSyncs = 4
)

// SyncOptions tune one sync run.
type SyncOptions struct {
	// Full ignores the stored cursor and refetches from the beginning.
	Full bool

	// Since stops paging once a whole page is older than this cutoff. The
	// upstream stream is ordered by updated_at descending, so everything
	// past that page is older still.
	Since *time.Time
}

// SyncService pulls PR activity from GitHub into the local store, one
// (repo, scope) at a time. Within a pair it is the only writer; distinct
// repos may sync concurrently.
type SyncService struct {
	gh        driven.GitHubClient
	prs       driven.PRStore
	entries   driven.EntryStore
	meta      driven.SyncMetaStore
	enrichers []Enricher
}

// NewSyncService creates a SyncService. Enrichers run in the given order on
// every captured entry.
func NewSyncService(
	gh driven.GitHubClient,
	prs driven.PRStore,
	entries driven.EntryStore,
	meta driven.SyncMetaStore,
	enrichers ...Enricher,
) *SyncService {
	return &SyncService{
		gh:        gh,
		prs:       prs,
		entries:   entries,
		meta:      meta,
		enrichers: enrichers,
	}
}

// Sync fetches all pages of PR activity for one (repo, scope) and persists
// PR summaries, flattened entries, and the resume cursor. The cursor is
// written only after a page's entries have committed, so a crash mid-page
// re-fetches that page and the idempotent insert absorbs the duplicates.
func (s *SyncService) Sync(ctx context.Context, repo string, scope model.SyncScope, opts SyncOptions) (*model.SyncResult, error) {
	capturedAt := time.Now().UTC()
	start := time.Now()

	prior, err := s.meta.Get(ctx, repo, scope)
	if err != nil {
		return nil, err
	}

	cursor := ""
	prCount := 0
	if prior != nil {
		prCount = prior.PRCount
		if !opts.Full {
			cursor = prior.Cursor
		}
	}

	result := &model.SyncResult{Repo: repo, Scope: scope}
	for {
		page, err := s.gh.FetchActivity(ctx, repo, driven.ActivityOpts{
			First:  syncPageSize,
			After:  cursor,
			States: scope.States(),
		})
		if err != nil {
			return nil, err
		}

		var batch []model.Entry
		for _, pr := range page.PRs {
			if err := s.prs.Upsert(ctx, prMetaOf(repo, pr)); err != nil {
				return nil, err
			}
			for _, e := range prToEntries(repo, pr, capturedAt) {
				batch = append(batch, s.enrich(ctx, e))
			}
			result.PRsProcessed++
		}

		added, err := s.entries.InsertEntries(ctx, batch)
		if err != nil {
			return nil, err
		}
		result.EntriesAdded += added

		// An empty page reports no cursor; keep the old one as the resume
		// point rather than resetting to the start.
		if page.EndCursor != "" {
			cursor = page.EndCursor
		}
		result.Cursor = cursor
		prCount += len(page.PRs)
		if err := s.meta.Put(ctx, model.SyncMeta{
			Repo:     repo,
			Scope:    scope,
			LastSync: capturedAt,
			Cursor:   cursor,
			PRCount:  prCount,
		}); err != nil {
			return nil, err
		}

		if !page.HasNextPage {
			break
		}
		if opts.Since != nil && len(page.PRs) > 0 {
			if last := page.PRs[len(page.PRs)-1]; last.UpdatedAt.Before(*opts.Since) {
				break
			}
		}
	}

	slog.Info("sync complete",
		"repo", repo,
		"scope", string(scope),
		"prs", result.PRsProcessed,
		"entries_added", result.EntriesAdded,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, nil
}

// SyncAll syncs every distinct repo, open scope then closed, with bounded
// parallelism across repos. A failing repo does not stop the others; the
// combined error reports each failure.
func (s *SyncService) SyncAll(ctx context.Context, repos []string, opts SyncOptions) ([]model.SyncResult, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []model.SyncResult
		errs    *multierror.Error
	)
	g.SetLimit(maxConcurrentSyncs)

	for _, repo := range dedupeRepos(repos) {
		g.Go(func() error {
			for _, scope := range []model.SyncScope{model.ScopeOpen, model.ScopeClosed} {
				res, err := s.Sync(ctx, repo, scope, opts)

				mu.Lock()
				if err != nil {
					errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", repo, scope, err))
					mu.Unlock()
					slog.Error("repo sync failed", "repo", repo, "scope", string(scope), "error", err)
					return nil
				}
				results = append(results, *res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Repo != results[j].Repo {
			return results[i].Repo < results[j].Repo
		}
		return results[i].Scope < results[j].Scope
	})

	return results, errs.ErrorOrNil()
}

// enrich runs the registered enrichers in order. Failures are logged and
// swallowed so the entry still lands without its block.
func (s *SyncService) enrich(ctx context.Context, e model.Entry) model.Entry {
	for _, en := range s.enrichers {
		enriched, err := en.Enrich(ctx, e)
		if err != nil {
			slog.Debug("enrichment skipped",
				"enricher", en.Name(), "repo", e.Repo, "entry", e.GHID, "error", err)
			continue
		}
		e = enriched
	}
	return e
}

// prMetaOf maps one fetched PR to its summary row.
func prMetaOf(repo string, pr driven.PRActivity) model.PRMeta {
	return model.PRMeta{
		Repo:      repo,
		Number:    pr.Number,
		State:     model.PRStateOf(pr.State, pr.IsDraft),
		IsDraft:   pr.IsDraft,
		Title:     pr.Title,
		Author:    pr.Author,
		Branch:    pr.Branch,
		BaseRef:   pr.BaseRef,
		URL:       pr.URL,
		Labels:    pr.Labels,
		Assignees: pr.Assignees,
		CreatedAt: pr.CreatedAt,
		UpdatedAt: pr.UpdatedAt,
	}
}

// prToEntries flattens one PR's activity into entries: reviews, issue
// comments, review thread comments, commits, then the CI rollup. Emission
// order is part of the contract, it fixes the gh_id tiebreak for entries
// sharing a timestamp.
func prToEntries(repo string, pr driven.PRActivity, capturedAt time.Time) []model.Entry {
	base := model.Entry{
		Repo:       repo,
		PR:         pr.Number,
		CapturedAt: capturedAt,
		PRTitle:    pr.Title,
		PRState:    model.PRStateOf(pr.State, pr.IsDraft),
		PRAuthor:   pr.Author,
		PRBranch:   pr.Branch,
		PRLabels:   pr.Labels,
	}

	entries := make([]model.Entry, 0,
		len(pr.Reviews)+len(pr.IssueComments)+len(pr.Commits)+len(pr.ReviewThreads)+1)

	for _, r := range pr.Reviews {
		e := base
		e.GHID = r.ID
		e.Type = model.EntryTypeReview
		e.Author = r.Author
		e.Body = r.Body
		e.State = strings.ToLower(r.State)
		e.URL = r.URL
		e.CreatedAt = r.SubmittedAt
		entries = append(entries, e)
	}

	for _, c := range pr.IssueComments {
		e := base
		e.GHID = c.ID
		e.Type = model.EntryTypeComment
		e.Subtype = model.SubtypeIssueComment
		e.Author = c.Author
		e.Body = c.Body
		e.URL = c.URL
		e.CreatedAt = c.CreatedAt
		e.UpdatedAt = c.UpdatedAt
		entries = append(entries, e)
	}

	for _, t := range pr.ReviewThreads {
		for _, c := range t.Comments {
			e := base
			e.GHID = c.ID
			e.Type = model.EntryTypeComment
			e.Subtype = model.SubtypeReviewComment
			e.Author = c.Author
			e.Body = c.Body
			e.URL = c.URL
			e.File = t.Path
			e.Line = t.Line
			e.ThreadID = t.ID
			resolved := t.IsResolved
			e.ThreadResolved = &resolved
			e.CreatedAt = c.CreatedAt
			e.UpdatedAt = c.UpdatedAt
			entries = append(entries, e)
		}
	}

	for _, c := range pr.Commits {
		e := base
		e.GHID = c.SHA
		e.Type = model.EntryTypeCommit
		e.Author = c.Author
		e.Body = c.Message
		e.URL = c.URL
		e.CreatedAt = c.CommittedAt
		entries = append(entries, e)
	}

	if pr.CIRollup != "" && len(pr.Commits) > 0 {
		head := pr.Commits[len(pr.Commits)-1]
		e := base
		e.GHID = "ci:" + head.SHA
		e.Type = model.EntryTypeCI
		e.State = string(model.CIStatusOf(pr.CIRollup))
		e.CreatedAt = head.CommittedAt
		entries = append(entries, e)
	}

	for i := range entries {
		entries[i].ShortID = identity.GenerateShortID(entries[i].GHID, repo)
	}

	return entries
}

func dedupeRepos(repos []string) []string {
	seen := make(map[string]bool, len(repos))
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
