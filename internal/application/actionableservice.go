package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// Perspective selects whose PRs the awaiting-review bucket cares about.
type Perspective string

const (
	PerspectiveNone    Perspective = "none"
	PerspectiveMine    Perspective = "mine"    // PRs authored by the viewer.
	PerspectiveReviews Perspective = "reviews" // PRs assigned to the viewer.
)

// DefaultStaleAfter is the activity cutoff past which an open PR counts as
// stale.
const DefaultStaleAfter = 7 * 24 * time.Hour

// ActionableService buckets PRs by the kind of attention they need.
type ActionableService struct {
	prs     driven.PRStore
	entries driven.EntryStore
	acks    driven.AckStore

	commitImpliesRead bool
}

// NewActionableService creates an ActionableService.
func NewActionableService(prs driven.PRStore, entries driven.EntryStore, acks driven.AckStore, commitImpliesRead bool) *ActionableService {
	return &ActionableService{prs: prs, entries: entries, acks: acks, commitImpliesRead: commitImpliesRead}
}

// Actionable buckets the known PRs, all repos when repo is empty. A PR lands
// in at most one bucket, the first that claims it: unaddressed feedback
// before standing change requests, before awaiting review, before staleness.
// A zero staleAfter applies DefaultStaleAfter.
func (s *ActionableService) Actionable(ctx context.Context, repo string, perspective Perspective, viewer string, staleAfter time.Duration) (*model.ActionableSummary, error) {
	switch perspective {
	case PerspectiveNone, PerspectiveMine, PerspectiveReviews:
	default:
		return nil, fmt.Errorf("%w: unknown perspective %q", fwerr.ErrValidation, perspective)
	}
	if perspective != PerspectiveNone && viewer == "" {
		return nil, fmt.Errorf("%w: --%s needs user.github_username in the config", fwerr.ErrValidation, perspective)
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	prs, err := s.listPRs(ctx, repo)
	if err != nil {
		return nil, err
	}

	acked := make(map[string]map[string]bool)
	now := time.Now()

	summary := &model.ActionableSummary{}
	for _, pr := range prs {
		entries, err := s.entries.EntriesForPR(ctx, pr.Repo, pr.Number)
		if err != nil {
			return nil, err
		}

		if acked[pr.Repo] == nil {
			set, err := s.acks.AckedSet(ctx, pr.Repo)
			if err != nil {
				return nil, err
			}
			acked[pr.Repo] = set
		}

		item := model.ActionableItem{
			Repo:           pr.Repo,
			PR:             pr.Number,
			Title:          pr.Title,
			Author:         pr.Author,
			State:          pr.State,
			LastActivityAt: lastActivityAt(entries, pr),
		}

		if n := unaddressedThreadCount(entries, viewer, acked[pr.Repo], s.commitImpliesRead); n > 0 {
			item.Unaddressed = n
			item.Reason = countNoun(n, "unaddressed review comment")
			summary.Unaddressed = append(summary.Unaddressed, item)
			continue
		}

		if pr.State.Terminal() {
			continue
		}

		if cr, by := standingChangeRequest(entries, pr.Author); cr {
			item.Reason = "changes requested"
			if by != "" {
				item.Reason = "changes requested by " + by
			}
			summary.ChangesRequested = append(summary.ChangesRequested, item)
			continue
		}

		if !hasReviews(entries) && awaitingFor(perspective, viewer, pr) {
			item.Reason = "no reviews yet"
			summary.AwaitingReview = append(summary.AwaitingReview, item)
			continue
		}

		if now.Sub(item.LastActivityAt) > staleAfter {
			item.Reason = "last activity " + humanize.Time(item.LastActivityAt)
			summary.Stale = append(summary.Stale, item)
		}
	}

	for _, bucket := range [][]model.ActionableItem{
		summary.Unaddressed, summary.ChangesRequested, summary.AwaitingReview, summary.Stale,
	} {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].LastActivityAt.After(bucket[j].LastActivityAt)
		})
	}

	return summary, nil
}

func (s *ActionableService) listPRs(ctx context.Context, repo string) ([]model.PRMeta, error) {
	if repo != "" {
		return s.prs.ListByRepo(ctx, repo)
	}
	return s.prs.ListAll(ctx)
}

func hasReviews(entries []model.Entry) bool {
	for _, e := range entries {
		if e.Type == model.EntryTypeReview {
			return true
		}
	}
	return false
}

func awaitingFor(perspective Perspective, viewer string, pr model.PRMeta) bool {
	switch perspective {
	case PerspectiveMine:
		return strings.EqualFold(pr.Author, viewer)
	case PerspectiveReviews:
		for _, a := range pr.Assignees {
			if strings.EqualFold(a, viewer) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
