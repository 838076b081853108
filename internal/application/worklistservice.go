package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// WorklistService rolls query results up into one row per PR, ordered so the
// PRs most in need of a response come first.
type WorklistService struct {
	query *QueryService
	acks  driven.AckStore

	// commitImpliesRead treats a thread as read once a later commit touched
	// its file, per the recorded file activity.
	commitImpliesRead bool
}

// NewWorklistService creates a WorklistService over the query pipeline.
func NewWorklistService(query *QueryService, acks driven.AckStore, commitImpliesRead bool) *WorklistService {
	return &WorklistService{query: query, acks: acks, commitImpliesRead: commitImpliesRead}
}

// Worklist groups the filtered entries by PR and computes per-PR activity
// counts, review-state tallies, and the unaddressed-feedback count. Sorted by
// changes-requested first, then unaddressed count, then recency.
func (s *WorklistService) Worklist(ctx context.Context, f model.Filter) ([]model.WorklistItem, error) {
	entries, err := s.query.Query(ctx, f, model.QueryOptions{})
	if err != nil {
		return nil, err
	}

	type prKey struct {
		repo   string
		number int
	}

	groups := make(map[prKey][]model.Entry)
	var order []prKey
	for _, e := range entries {
		k := prKey{repo: e.Repo, number: e.PR}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	acked := make(map[string]map[string]bool)
	items := make([]model.WorklistItem, 0, len(order))
	for _, k := range order {
		group := groups[k]

		if acked[k.repo] == nil {
			set, err := s.acks.AckedSet(ctx, k.repo)
			if err != nil {
				return nil, err
			}
			acked[k.repo] = set
		}

		items = append(items, buildWorklistItem(k.repo, k.number, group, acked[k.repo], s.commitImpliesRead))
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ChangesRequested != b.ChangesRequested {
			return a.ChangesRequested
		}
		if a.Unaddressed != b.Unaddressed {
			return a.Unaddressed > b.Unaddressed
		}
		return a.LastActivityAt.After(b.LastActivityAt)
	})

	return items, nil
}

// buildWorklistItem rolls one PR's entries, newest first, into a worklist
// row.
func buildWorklistItem(repo string, number int, group []model.Entry, acked map[string]bool, commitImpliesRead bool) model.WorklistItem {
	latest := group[0]
	item := model.WorklistItem{
		Repo:           repo,
		PR:             number,
		Title:          latest.PRTitle,
		Author:         latest.PRAuthor,
		State:          latest.PRState,
		Branch:         latest.PRBranch,
		Labels:         latest.PRLabels,
		LastActivityAt: latest.CreatedAt,
		LastActivityBy: latest.Author,
	}
	item.LastActivityHuman = humanize.Time(item.LastActivityAt)

	reviewStates := make(map[string]int)
	for _, e := range group {
		item.Counts.Add(e.Type)
		if e.Type == model.EntryTypeReview && e.State != "" {
			reviewStates[e.State]++
		}
		if item.Graphite == nil && e.Graphite != nil {
			item.Graphite = e.Graphite
		}
	}
	if len(reviewStates) > 0 {
		item.ReviewStates = reviewStates
	}

	item.Unaddressed = unaddressedThreadCount(group, "", acked, commitImpliesRead)
	item.ChangesRequested, _ = standingChangeRequest(group, latest.PRAuthor)

	return item
}

// threadState accumulates one review thread's standing across its comments.
type threadState struct {
	unresolved bool
	acked      bool
	byOther    bool
	touched    bool
}

// collectThreads folds review-comment entries into per-thread standing.
// viewer may be empty, in which case every thread counts as carrying
// someone else's feedback.
func collectThreads(entries []model.Entry, viewer string, acked map[string]bool) map[string]*threadState {
	threads := make(map[string]*threadState)
	for _, e := range entries {
		if !e.IsReviewComment() || e.ThreadID == "" {
			continue
		}
		ts := threads[e.ThreadID]
		if ts == nil {
			ts = &threadState{}
			threads[e.ThreadID] = ts
		}
		if e.ThreadResolved == nil || !*e.ThreadResolved {
			ts.unresolved = true
		}
		if acked[e.GHID] {
			ts.acked = true
		}
		if viewer == "" || !strings.EqualFold(e.Author, viewer) {
			ts.byOther = true
		}
		if e.FileActivityAfter != nil && e.FileActivityAfter.Modified {
			ts.touched = true
		}
	}
	return threads
}

// unaddressedThreadCount counts distinct unresolved review threads with no
// acked comment and at least one comment by someone other than viewer.
func unaddressedThreadCount(entries []model.Entry, viewer string, acked map[string]bool, commitImpliesRead bool) int {
	count := 0
	for _, ts := range collectThreads(entries, viewer, acked) {
		if ts.outstanding(commitImpliesRead) {
			count++
		}
	}
	return count
}

func (ts *threadState) outstanding(commitImpliesRead bool) bool {
	if !ts.unresolved || ts.acked || !ts.byOther {
		return false
	}
	return !(commitImpliesRead && ts.touched)
}

// unaddressedEntries returns the review comments sitting in outstanding
// threads, preserving input order.
func unaddressedEntries(entries []model.Entry, viewer string, acked map[string]bool, commitImpliesRead bool) []model.Entry {
	threads := collectThreads(entries, viewer, acked)

	var out []model.Entry
	for _, e := range entries {
		if !e.IsReviewComment() || e.ThreadID == "" {
			continue
		}
		if ts := threads[e.ThreadID]; ts != nil && ts.outstanding(commitImpliesRead) {
			out = append(out, e)
		}
	}
	return out
}

// standingChangeRequest reports whether the PR's newest change request from a
// non-author reviewer is still standing, meaning no non-author approval came
// after it. Returns the requesting reviewer when it is.
func standingChangeRequest(entries []model.Entry, prAuthor string) (bool, string) {
	var crAt, approvedAt time.Time
	var crBy string

	for _, e := range entries {
		if e.Type != model.EntryTypeReview || strings.EqualFold(e.Author, prAuthor) {
			continue
		}
		switch e.State {
		case string(model.ReviewStateChangesRequested):
			if e.CreatedAt.After(crAt) {
				crAt = e.CreatedAt
				crBy = e.Author
			}
		case string(model.ReviewStateApproved):
			if e.CreatedAt.After(approvedAt) {
				approvedAt = e.CreatedAt
			}
		}
	}

	if crAt.IsZero() || crAt.Before(approvedAt) {
		return false, ""
	}
	return true, crBy
}

// lastActivityAt returns the newest entry timestamp, falling back to the
// PR's own updated_at when it has no entries yet.
func lastActivityAt(entries []model.Entry, pr model.PRMeta) time.Time {
	if len(entries) == 0 {
		return pr.UpdatedAt
	}
	last := entries[0].CreatedAt
	for _, e := range entries[1:] {
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}
	return last
}
