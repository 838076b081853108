package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// lookoutLastRunKey is the meta-store key holding the end of the previous
// lookout window.
const lookoutLastRunKey = "lookout.last_run"

// defaultLookoutWindow is the report window when no previous run is
// recorded or the user asked for a reset.
const defaultLookoutWindow = 7 * 24 * time.Hour

// LookoutOptions tune one lookout run.
type LookoutOptions struct {
	// Reset ignores the stored window start and reports over the default
	// window.
	Reset bool

	// Viewer excludes the user's own comments from the unaddressed list.
	Viewer string

	// StaleAfter is the attention cutoff for open PRs without activity,
	// DefaultStaleAfter when zero.
	StaleAfter time.Duration
}

// LookoutService produces the since-you-last-looked digest: new activity in
// the window, plus the standing attention counts over open PRs.
type LookoutService struct {
	query   *QueryService
	entries driven.EntryStore
	prs     driven.PRStore
	acks    driven.AckStore
	meta    driven.MetaStore

	commitImpliesRead bool
}

// NewLookoutService creates a LookoutService over the query pipeline.
func NewLookoutService(
	query *QueryService,
	entries driven.EntryStore,
	prs driven.PRStore,
	acks driven.AckStore,
	meta driven.MetaStore,
	commitImpliesRead bool,
) *LookoutService {
	return &LookoutService{
		query:             query,
		entries:           entries,
		prs:               prs,
		acks:              acks,
		meta:              meta,
		commitImpliesRead: commitImpliesRead,
	}
}

// Lookout reports activity since the previous run. The filter scopes the
// window query; its Since is overwritten with the window start. The run
// timestamp is persisted only after the report is built, so a failed run
// never shrinks the next window.
func (s *LookoutService) Lookout(ctx context.Context, f model.Filter, opts LookoutOptions) (*model.LookoutReport, error) {
	now := time.Now().UTC()
	periodStart, firstRun := s.periodStart(ctx, now, opts.Reset)
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	f.Since = &periodStart
	entries, err := s.query.Query(ctx, f, model.QueryOptions{})
	if err != nil {
		return nil, err
	}

	report := &model.LookoutReport{
		Repo:        f.ExactRepo,
		PeriodStart: periodStart,
		PeriodEnd:   now,
		FirstRun:    firstRun,
	}
	for _, e := range entries {
		report.NewEntries.Add(e.Type)
	}

	if err := s.fillAttention(ctx, report, f.ExactRepo, staleAfter, now); err != nil {
		return nil, err
	}

	report.UnaddressedFeedback, err = s.windowUnaddressed(ctx, entries, opts.Viewer)
	if err != nil {
		return nil, err
	}

	if err := s.meta.Set(ctx, lookoutLastRunKey, now.Format(time.RFC3339Nano)); err != nil {
		return report, err
	}

	return report, nil
}

// periodStart returns the start of the report window: the stored previous
// run, or the default window back from now.
func (s *LookoutService) periodStart(ctx context.Context, now time.Time, reset bool) (time.Time, bool) {
	fallback := now.Add(-defaultLookoutWindow)
	if reset {
		return fallback, false
	}

	stored, err := s.meta.Get(ctx, lookoutLastRunKey)
	if err != nil {
		slog.Debug("lookout timestamp unreadable, using default window", "error", err)
		return fallback, false
	}
	if stored == "" {
		return fallback, true
	}

	t, err := time.Parse(time.RFC3339Nano, stored)
	if err != nil {
		slog.Warn("stored lookout timestamp unparseable, using default window",
			"value", stored, "error", err)
		return fallback, false
	}
	return t, false
}

// fillAttention counts the open PRs with a standing change request, no
// reviews, or no recent activity.
func (s *LookoutService) fillAttention(ctx context.Context, report *model.LookoutReport, repo string, staleAfter time.Duration, now time.Time) error {
	prs, err := s.prs.ListByStates(ctx, []model.PRState{model.PRStateOpen, model.PRStateDraft})
	if err != nil {
		return err
	}

	for _, pr := range prs {
		if repo != "" && pr.Repo != repo {
			continue
		}
		entries, err := s.entries.EntriesForPR(ctx, pr.Repo, pr.Number)
		if err != nil {
			return err
		}

		if cr, _ := standingChangeRequest(entries, pr.Author); cr {
			report.Attention.ChangesRequested++
		}
		if !hasReviews(entries) {
			report.Attention.Unreviewed++
		}
		if now.Sub(lastActivityAt(entries, pr)) > staleAfter {
			report.Attention.Stale++
		}
	}
	return nil
}

// windowUnaddressed lists the unresolved, un-acked review comments among the
// window's entries.
func (s *LookoutService) windowUnaddressed(ctx context.Context, entries []model.Entry, viewer string) ([]model.Entry, error) {
	byRepo := make(map[string][]model.Entry)
	var repoOrder []string
	for _, e := range entries {
		if _, seen := byRepo[e.Repo]; !seen {
			repoOrder = append(repoOrder, e.Repo)
		}
		byRepo[e.Repo] = append(byRepo[e.Repo], e)
	}

	var out []model.Entry
	for _, repo := range repoOrder {
		acked, err := s.acks.AckedSet(ctx, repo)
		if err != nil {
			return nil, err
		}
		out = append(out, unaddressedEntries(byRepo[repo], viewer, acked, s.commitImpliesRead)...)
	}
	return out, nil
}
