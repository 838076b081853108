package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
	"github.com/firewatchhq/firewatch/internal/identity"
)

// maxConcurrentActions bounds parallel GitHub mutations in a batch.
const maxConcurrentActions = 4

// reactionThumbsUp is the reaction mirrored onto acked comments.
const reactionThumbsUp = "THUMBS_UP"

// Outcome is the per-target result of a feedback action. Batch operations
// return one Outcome per processed target, in input order.
type Outcome struct {
	OK            bool   `json:"ok"`
	ShortID       string `json:"short_id,omitempty"`
	GHID          string `json:"gh_id,omitempty"`
	PR            int    `json:"pr,omitempty"`
	ReactionAdded bool   `json:"reaction_added,omitempty"`
	AlreadyAcked  bool   `json:"already_acked,omitempty"`
	Resolved      bool   `json:"resolved,omitempty"`
	NewShortID    string `json:"new_short_id,omitempty"`
	InReplyTo     string `json:"in_reply_to,omitempty"`
	URL           string `json:"url,omitempty"`
	Warning       string `json:"warning,omitempty"`
	Err           string `json:"error,omitempty"`
}

// BatchOptions narrow a multi-target action to a time window. Targets outside
// the window are dropped before dispatch.
type BatchOptions struct {
	Since  *time.Time
	Before *time.Time
}

// FeedbackService turns user-supplied identifiers into GitHub mutations and
// local ack/freeze writes. The writer is nil when no token is configured;
// write actions then fail with fwerr.ErrAuth, except ack, which degrades to a
// local-only record.
type FeedbackService struct {
	entries driven.EntryStore
	acks    driven.AckStore
	freezes driven.FreezeStore
	gh      driven.GitHubClient
	writer  driven.GitHubWriter
	ids     *identity.Cache

	username string
}

// NewFeedbackService creates a FeedbackService. writer may be nil when
// running without a token.
func NewFeedbackService(
	entries driven.EntryStore,
	acks driven.AckStore,
	freezes driven.FreezeStore,
	gh driven.GitHubClient,
	writer driven.GitHubWriter,
	ids *identity.Cache,
	username string,
) *FeedbackService {
	return &FeedbackService{
		entries:  entries,
		acks:     acks,
		freezes:  freezes,
		gh:       gh,
		writer:   writer,
		ids:      ids,
		username: username,
	}
}

// resolveTarget maps an identifier to either a stored entry or a bare PR
// number. A nil entry with a non-zero PR means the whole pull request is the
// target.
func (s *FeedbackService) resolveTarget(ctx context.Context, repo, input string) (*model.Entry, int, error) {
	switch identity.Classify(input) {
	case identity.KindPRNumber:
		n, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad PR number %q: %v", fwerr.ErrValidation, input, err)
		}
		return nil, n, nil

	case identity.KindShortID:
		if t, ok := s.ids.Resolve(input); ok {
			e, err := s.entries.GetEntry(ctx, t.Repo, t.FullID)
			if err != nil {
				return nil, 0, err
			}
			return e, e.PR, nil
		}
		// Cache miss: rebuild from the store and retry once.
		if err := s.rebuildIDCache(ctx, repo); err != nil {
			return nil, 0, err
		}
		if t, ok := s.ids.Resolve(input); ok {
			e, err := s.entries.GetEntry(ctx, t.Repo, t.FullID)
			if err != nil {
				return nil, 0, err
			}
			return e, e.PR, nil
		}
		return nil, 0, fmt.Errorf("%w: no entry matches %s", fwerr.ErrNotFound,
			identity.FormatDisplayID(identity.Normalize(input)))

	case identity.KindFullID:
		e, err := s.entries.GetEntry(ctx, repo, input)
		if err != nil {
			return nil, 0, err
		}
		return e, e.PR, nil

	default:
		return nil, 0, fmt.Errorf("%w: invalid ID format: %q", fwerr.ErrValidation, input)
	}
}

func (s *FeedbackService) rebuildIDCache(ctx context.Context, repo string) error {
	rows, err := s.entries.QueryEntries(ctx, model.Filter{ExactRepo: repo})
	if err != nil {
		return err
	}
	for _, e := range rows {
		s.ids.Register(e.GHID, e.Repo, e.PR)
	}
	slog.Debug("short id cache rebuilt", "repo", repo, "entries", len(rows))
	return nil
}

// batchTarget is one resolved comment in a batch, or the failure that kept it
// from resolving.
type batchTarget struct {
	entry *model.Entry
	fail  *Outcome
	err   error
}

// resolveComments resolves each identifier to a comment entry. Whole-PR
// targets become per-target failures, duplicates of an already-resolved
// comment and entries outside the window are dropped.
func (s *FeedbackService) resolveComments(ctx context.Context, repo string, inputs []string, opts BatchOptions) []batchTarget {
	var targets []batchTarget
	seen := make(map[string]bool)

	for _, input := range inputs {
		e, _, err := s.resolveTarget(ctx, repo, input)
		if err != nil {
			targets = append(targets, batchTarget{
				fail: &Outcome{Err: err.Error()},
				err:  err,
			})
			continue
		}
		if e == nil {
			err := fmt.Errorf("%w: %q targets a whole pull request, pass a comment id", fwerr.ErrValidation, input)
			targets = append(targets, batchTarget{
				fail: &Outcome{Err: err.Error()},
				err:  err,
			})
			continue
		}
		if seen[e.GHID] {
			continue
		}
		seen[e.GHID] = true

		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Before != nil && !e.CreatedAt.Before(*opts.Before) {
			continue
		}
		targets = append(targets, batchTarget{entry: e})
	}
	return targets
}

// Ack acknowledges each target comment. The ack is a local write; with a
// writer configured a THUMBS_UP reaction is attempted first and its success
// recorded on the ack. Reaction failures never fail the ack.
func (s *FeedbackService) Ack(ctx context.Context, repo string, inputs []string, opts BatchOptions) ([]Outcome, error) {
	targets := s.resolveComments(ctx, repo, inputs, opts)
	if len(targets) == 0 {
		return nil, nil
	}

	results := make([]Outcome, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(maxConcurrentActions)
	for i, t := range targets {
		g.Go(func() error {
			results[i], errs[i] = s.ackOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return results, batchError(errs)
}

func (s *FeedbackService) ackOne(ctx context.Context, t batchTarget) (Outcome, error) {
	if t.fail != nil {
		return *t.fail, t.err
	}
	e := t.entry
	out := Outcome{OK: true, ShortID: e.ShortID, GHID: e.GHID, PR: e.PR}
	if out.ShortID == "" {
		out.ShortID = identity.GenerateShortID(e.GHID, e.Repo)
	}

	reacted := false
	switch {
	case s.writer == nil:
		out.Warning = "no token"
	default:
		err := s.writer.AddReaction(ctx, e.GHID, reactionThumbsUp)
		if err == nil || errors.Is(err, fwerr.ErrConflict) {
			reacted = true
		} else {
			slog.Debug("reaction failed, keeping local ack",
				"gh_id", e.GHID, "error", err)
			out.Warning = "reaction failed"
		}
	}
	out.ReactionAdded = reacted

	created, err := s.acks.Ack(ctx, model.Ack{
		Repo:          e.Repo,
		CommentID:     e.GHID,
		PR:            e.PR,
		AckedAt:       time.Now().UTC(),
		AckedBy:       s.username,
		ReactionAdded: reacted,
	})
	if err != nil {
		out.OK = false
		out.Err = err.Error()
		return out, err
	}
	out.AlreadyAcked = !created
	return out, nil
}

// Unack removes the local acknowledgement of a comment.
func (s *FeedbackService) Unack(ctx context.Context, repo, input string) error {
	e, _, err := s.resolveTarget(ctx, repo, input)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: unack targets a comment, not a pull request", fwerr.ErrValidation)
	}
	return s.acks.Remove(ctx, e.Repo, e.GHID)
}

// Acks lists acknowledgements for a repo, or all repos when repo is empty.
func (s *FeedbackService) Acks(ctx context.Context, repo string) ([]model.Ack, error) {
	return s.acks.List(ctx, repo)
}

// Reply posts a reply to the target. Review comments get a thread reply,
// optionally resolving the thread afterwards; issue comments and whole PRs
// get a top-level comment.
func (s *FeedbackService) Reply(ctx context.Context, repo, input, body string, resolve bool) (*Outcome, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: reply body must not be empty", fwerr.ErrValidation)
	}
	if s.writer == nil {
		return nil, authRequired("reply")
	}

	e, pr, err := s.resolveTarget(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	targetRepo := repo
	if e != nil {
		targetRepo, pr = e.Repo, e.PR
	}

	out := &Outcome{OK: true, PR: pr}
	if e != nil {
		out.ShortID, out.GHID = e.ShortID, e.GHID
	}

	if e != nil && e.Subtype == model.SubtypeReviewComment {
		threadID, err := newThreadLookup(s.gh).threadFor(ctx, e)
		if err != nil {
			return nil, err
		}
		ref, err := s.writer.AddReviewThreadReply(ctx, threadID, body)
		if err != nil {
			return nil, err
		}
		out.NewShortID = s.ids.Register(ref.ID, targetRepo, pr)
		out.URL = ref.URL
		out.InReplyTo = e.GHID

		if resolve {
			err := s.writer.ResolveReviewThread(ctx, threadID)
			if err == nil || errors.Is(err, fwerr.ErrConflict) {
				out.Resolved = true
			} else {
				slog.Warn("reply posted but resolve failed",
					"thread_id", threadID, "error", err)
				out.Warning = "resolve failed"
			}
		}
		return out, nil
	}

	ref, err := s.writer.AddIssueComment(ctx, targetRepo, pr, body)
	if err != nil {
		return nil, err
	}
	out.NewShortID = s.ids.Register(ref.ID, targetRepo, pr)
	out.URL = ref.URL
	if e != nil {
		out.InReplyTo = e.GHID
	}
	if resolve {
		out.Warning = "resolve ignored: target is not a review thread"
	}
	return out, nil
}

// Close resolves the review threads behind the targets. Distinct threads are
// resolved once each; a whole-PR target expands to every unresolved thread on
// that PR and requires all=true.
func (s *FeedbackService) Close(ctx context.Context, repo string, inputs []string, all bool) ([]Outcome, error) {
	if s.writer == nil {
		return nil, authRequired("resolve threads")
	}

	type closeTarget struct {
		threadID string
		out      Outcome
		err      error
	}

	lookup := newThreadLookup(s.gh)
	seen := make(map[string]bool)
	var targets []closeTarget

	for _, input := range inputs {
		e, pr, err := s.resolveTarget(ctx, repo, input)
		if err != nil {
			targets = append(targets, closeTarget{out: Outcome{Err: err.Error()}, err: err})
			continue
		}

		if e == nil {
			if !all {
				return nil, fmt.Errorf("%w: resolving every thread on #%d requires --all", fwerr.ErrValidation, pr)
			}
			threads, err := lookup.forPR(ctx, repo, pr)
			if err != nil {
				return nil, err
			}
			var ids []string
			for _, ref := range threads {
				if !ref.IsResolved && !seen[ref.ThreadID] {
					seen[ref.ThreadID] = true
					ids = append(ids, ref.ThreadID)
				}
			}
			sort.Strings(ids)
			for _, id := range ids {
				targets = append(targets, closeTarget{threadID: id, out: Outcome{PR: pr}})
			}
			continue
		}

		if e.Subtype != model.SubtypeReviewComment {
			err := fmt.Errorf("%w: %q is not a review thread comment", fwerr.ErrValidation, input)
			targets = append(targets, closeTarget{
				out: Outcome{ShortID: e.ShortID, GHID: e.GHID, PR: e.PR, Err: err.Error()},
				err: err,
			})
			continue
		}

		threadID, err := lookup.threadFor(ctx, e)
		if err != nil {
			targets = append(targets, closeTarget{
				out: Outcome{ShortID: e.ShortID, GHID: e.GHID, PR: e.PR, Err: err.Error()},
				err: err,
			})
			continue
		}
		if seen[threadID] {
			continue
		}
		seen[threadID] = true
		targets = append(targets, closeTarget{
			threadID: threadID,
			out:      Outcome{ShortID: e.ShortID, GHID: e.GHID, PR: e.PR},
		})
	}

	if len(targets) == 0 {
		return nil, nil
	}

	results := make([]Outcome, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(maxConcurrentActions)
	for i, t := range targets {
		g.Go(func() error {
			results[i], errs[i] = t.out, t.err
			if t.err != nil || t.threadID == "" {
				return nil
			}
			err := s.writer.ResolveReviewThread(ctx, t.threadID)
			if err != nil && !errors.Is(err, fwerr.ErrConflict) {
				results[i].Err = err.Error()
				errs[i] = err
				return nil
			}
			results[i].OK = true
			results[i].Resolved = true
			return nil
		})
	}
	_ = g.Wait()

	return results, batchError(errs)
}

// Approve submits an approving review on the target PR. body is optional.
func (s *FeedbackService) Approve(ctx context.Context, repo, input, body string) (*Outcome, error) {
	return s.submitReview(ctx, repo, input, "APPROVE", body)
}

// Reject submits a changes-requested review. body is mandatory: a rejection
// without direction is not actionable.
func (s *FeedbackService) Reject(ctx context.Context, repo, input, body string) (*Outcome, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: rejecting requires a body explaining what to change", fwerr.ErrValidation)
	}
	return s.submitReview(ctx, repo, input, "REQUEST_CHANGES", body)
}

func (s *FeedbackService) submitReview(ctx context.Context, repo, input, event, body string) (*Outcome, error) {
	if s.writer == nil {
		return nil, authRequired("submit a review")
	}
	e, pr, err := s.resolveTarget(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	targetRepo := repo
	if e != nil {
		targetRepo, pr = e.Repo, e.PR
	}

	if err := s.writer.SubmitReview(ctx, targetRepo, pr, event, body); err != nil {
		return nil, err
	}
	out := &Outcome{OK: true, PR: pr}
	if e != nil {
		out.ShortID, out.GHID = e.ShortID, e.GHID
	}
	return out, nil
}

// Edit applies metadata changes to the target PR. The writer applies each
// populated field independently and reports collected failures.
func (s *FeedbackService) Edit(ctx context.Context, repo, input string, edit driven.PREdit) (*Outcome, error) {
	if edit.Empty() {
		return nil, fmt.Errorf("%w: nothing to edit", fwerr.ErrValidation)
	}
	if s.writer == nil {
		return nil, authRequired("edit a pull request")
	}
	e, pr, err := s.resolveTarget(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	targetRepo := repo
	if e != nil {
		targetRepo, pr = e.Repo, e.PR
	}

	if err := s.writer.EditPullRequest(ctx, targetRepo, pr, edit); err != nil {
		return nil, err
	}
	return &Outcome{OK: true, PR: pr}, nil
}

// Freeze hides future activity on the target. A PR number freezes the whole
// PR; a review comment freezes its thread.
func (s *FeedbackService) Freeze(ctx context.Context, repo, input string) (*model.Freeze, error) {
	f, err := s.freezeTarget(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	f.FrozenAt = time.Now().UTC()
	if err := s.freezes.Freeze(ctx, *f); err != nil {
		return nil, err
	}
	return f, nil
}

// Unfreeze removes the freeze on the target.
func (s *FeedbackService) Unfreeze(ctx context.Context, repo, input string) error {
	f, err := s.freezeTarget(ctx, repo, input)
	if err != nil {
		return err
	}
	return s.freezes.Unfreeze(ctx, f.Repo, f.PR, f.Kind, f.TargetID)
}

func (s *FeedbackService) freezeTarget(ctx context.Context, repo, input string) (*model.Freeze, error) {
	e, pr, err := s.resolveTarget(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return &model.Freeze{Repo: repo, PR: pr, Kind: model.FreezePR}, nil
	}
	if e.Subtype == model.SubtypeReviewComment && e.ThreadID != "" {
		return &model.Freeze{Repo: e.Repo, PR: e.PR, Kind: model.FreezeThread, TargetID: e.ThreadID}, nil
	}
	return nil, fmt.Errorf("%w: only pull requests and review threads can be frozen", fwerr.ErrValidation)
}

// CommentIDs returns the full ids of every comment entry on a PR, newest
// first. The CLI uses it to expand a PR number into per-comment targets.
func (s *FeedbackService) CommentIDs(ctx context.Context, repo string, pr int) ([]string, error) {
	entries, err := s.entries.EntriesForPR(ctx, repo, pr)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.Type == model.EntryTypeComment {
			ids = append(ids, e.GHID)
		}
	}
	return ids, nil
}

// threadLookup memoizes per-PR thread maps for the duration of one action.
type threadLookup struct {
	gh   driven.GitHubClient
	maps map[string]map[string]driven.ThreadRef
	errs map[string]error
}

func newThreadLookup(gh driven.GitHubClient) *threadLookup {
	return &threadLookup{
		gh:   gh,
		maps: make(map[string]map[string]driven.ThreadRef),
		errs: make(map[string]error),
	}
}

func (l *threadLookup) forPR(ctx context.Context, repo string, pr int) (map[string]driven.ThreadRef, error) {
	key := repo + "#" + strconv.Itoa(pr)
	if m, ok := l.maps[key]; ok {
		return m, l.errs[key]
	}
	m, err := l.gh.FetchReviewThreadMap(ctx, repo, pr)
	l.maps[key] = m
	l.errs[key] = err
	return m, err
}

// threadFor locates the thread a review comment belongs to: the live thread
// map first, the thread id captured at sync time as fallback.
func (l *threadLookup) threadFor(ctx context.Context, e *model.Entry) (string, error) {
	m, err := l.forPR(ctx, e.Repo, e.PR)
	if err != nil {
		slog.Debug("thread map fetch failed, falling back to stored thread id",
			"repo", e.Repo, "pr", e.PR, "error", err)
	} else if ref, ok := m[e.GHID]; ok {
		return ref.ThreadID, nil
	}
	if e.ThreadID != "" {
		return e.ThreadID, nil
	}
	return "", fmt.Errorf("%w: no review thread found for comment %s", fwerr.ErrNotFound, e.GHID)
}

// batchError condenses per-target errors: nil when everything succeeded, a
// PartialError when some targets failed, the underlying error(s) when all did.
func batchError(errs []error) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	switch {
	case len(failed) == 0:
		return nil
	case len(failed) < len(errs):
		return &fwerr.PartialError{Failed: len(failed), Total: len(errs)}
	case len(failed) == 1:
		return failed[0]
	default:
		var merr *multierror.Error
		for _, err := range failed {
			merr = multierror.Append(merr, err)
		}
		return merr.ErrorOrNil()
	}
}

func authRequired(what string) error {
	return fmt.Errorf("%w: a GitHub token is required to %s", fwerr.ErrAuth, what)
}
