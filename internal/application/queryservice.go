package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
	"github.com/firewatchhq/firewatch/internal/identity"
)

// Syncer is the slice of SyncService the query path needs for automatic
// cache refresh.
type Syncer interface {
	Sync(ctx context.Context, repo string, scope model.SyncScope, opts SyncOptions) (*model.SyncResult, error)
}

// QueryService answers entry queries: the store handles the SQL-expressible
// filter fields, then the service applies the refinements SQL cannot express
// (regex bot matching, freeze cutoffs, orphan detection) and paginates.
type QueryService struct {
	entries driven.EntryStore
	freezes driven.FreezeStore
	meta    driven.SyncMetaStore

	// syncer, when set, refreshes a repo's cache before querying it if the
	// last sync is older than staleThreshold.
	syncer         Syncer
	staleThreshold time.Duration
}

// NewQueryService creates a QueryService. A nil syncer disables automatic
// refresh.
func NewQueryService(
	entries driven.EntryStore,
	freezes driven.FreezeStore,
	meta driven.SyncMetaStore,
	syncer Syncer,
	staleThreshold time.Duration,
) *QueryService {
	return &QueryService{
		entries:        entries,
		freezes:        freezes,
		meta:           meta,
		syncer:         syncer,
		staleThreshold: staleThreshold,
	}
}

// Query returns entries matching the filter, newest first, with display IDs
// attached. Refinements run in a fixed order: author include, author
// excludes, bot patterns, freeze cutoffs, orphan selection, then pagination.
func (s *QueryService) Query(ctx context.Context, f model.Filter, opts model.QueryOptions) ([]model.Entry, error) {
	s.autoSync(ctx, f.ExactRepo)

	rows, err := s.entries.QueryEntries(ctx, f)
	if err != nil {
		return nil, err
	}

	rows, err = s.refine(ctx, f, rows)
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].GHID < rows[j].GHID
	})

	rows = paginate(rows, opts)

	for i := range rows {
		if rows[i].ShortID == "" {
			rows[i].ShortID = identity.GenerateShortID(rows[i].GHID, rows[i].Repo)
		}
		rows[i].ID = rows[i].DisplayID()
	}

	return rows, nil
}

// Count returns the number of entries the SQL-expressible filter fields
// match, without client-side refinement.
func (s *QueryService) Count(ctx context.Context, f model.Filter) (int, error) {
	return s.entries.CountEntries(ctx, f)
}

// autoSync refreshes the repo when its open-scope sync is older than the
// stale threshold. Query results must not depend on the network, so a failed
// refresh is logged and the query proceeds against the stale cache.
func (s *QueryService) autoSync(ctx context.Context, repo string) {
	if s.syncer == nil || s.staleThreshold <= 0 || repo == "" {
		return
	}

	meta, err := s.meta.Get(ctx, repo, model.ScopeOpen)
	if err != nil {
		slog.Debug("auto-sync staleness lookup failed", "repo", repo, "error", err)
		return
	}
	if meta != nil && time.Since(meta.LastSync) < s.staleThreshold {
		return
	}

	if _, err := s.syncer.Sync(ctx, repo, model.ScopeOpen, SyncOptions{}); err != nil {
		slog.Warn("auto-sync failed, querying stale cache", "repo", repo, "error", err)
	}
}

func (s *QueryService) refine(ctx context.Context, f model.Filter, rows []model.Entry) ([]model.Entry, error) {
	if f.Author != "" {
		rows = keep(rows, func(e model.Entry) bool {
			return strings.EqualFold(e.Author, f.Author)
		})
	}

	if len(f.ExcludeAuthors) > 0 {
		excluded := make(map[string]bool, len(f.ExcludeAuthors))
		for _, a := range f.ExcludeAuthors {
			excluded[strings.ToLower(a)] = true
		}
		rows = keep(rows, func(e model.Entry) bool {
			return !excluded[strings.ToLower(e.Author)]
		})
	}

	if f.ExcludeBots {
		matcher, err := compileBotPatterns(f.BotPatterns)
		if err != nil {
			return nil, err
		}
		rows = keep(rows, func(e model.Entry) bool {
			return !matcher.MatchString(e.Author)
		})
	}

	if !f.IncludeFrozen {
		var err error
		rows, err = s.dropFrozen(ctx, rows)
		if err != nil {
			return nil, err
		}
	}

	if f.Orphaned {
		rows = keep(rows, model.Entry.IsOrphaned)
	}

	return rows, nil
}

// dropFrozen removes entries newer than a freeze covering their PR or
// thread.
func (s *QueryService) dropFrozen(ctx context.Context, rows []model.Entry) ([]model.Entry, error) {
	repos := repoSet(rows)
	if len(repos) == 0 {
		return rows, nil
	}

	freezes, err := s.freezes.ForRepos(ctx, repos)
	if err != nil {
		return nil, err
	}
	if len(freezes) == 0 {
		return rows, nil
	}

	return keep(rows, func(e model.Entry) bool {
		for _, fr := range freezes {
			if fr.Hides(e) {
				return false
			}
		}
		return true
	}), nil
}

// compileBotPatterns builds one case-insensitive matcher over the given
// patterns, falling back to the built-in bot list when none are configured.
func compileBotPatterns(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		patterns = model.DefaultBotPatterns
	}
	joined := "(?i)(" + strings.Join(patterns, ")|(") + ")"
	matcher, err := regexp.Compile(joined)
	if err != nil {
		return nil, fmt.Errorf("%w: bad bot pattern: %v", fwerr.ErrValidation, err)
	}
	return matcher, nil
}

func keep(rows []model.Entry, pred func(model.Entry) bool) []model.Entry {
	out := rows[:0]
	for _, e := range rows {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func paginate(rows []model.Entry, opts model.QueryOptions) []model.Entry {
	if opts.Offset > 0 {
		if opts.Offset >= len(rows) {
			return nil
		}
		rows = rows[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows
}

func repoSet(rows []model.Entry) []string {
	seen := make(map[string]bool)
	var repos []string
	for _, e := range rows {
		if !seen[e.Repo] {
			seen[e.Repo] = true
			repos = append(repos, e.Repo)
		}
	}
	sort.Strings(repos)
	return repos
}

var sincePattern = regexp.MustCompile(`^([0-9]+)([hdwm])$`)

// ParseSince anchors a relative duration like "24h", "3d", "2w", or "1m"
// against now. Months subtract calendar months; see ParseSinceDuration for
// the fixed-length variant used in threshold math.
func ParseSince(input string, now time.Time) (time.Time, error) {
	n, unit, err := parseSinceParts(input)
	if err != nil {
		return time.Time{}, err
	}

	switch unit {
	case "h":
		return now.Add(-time.Duration(n) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "w":
		return now.AddDate(0, 0, -7*n), nil
	default:
		return now.AddDate(0, -n, 0), nil
	}
}

// ParseSinceDuration converts the same syntax to a fixed duration, counting
// a month as 30 days.
func ParseSinceDuration(input string) (time.Duration, error) {
	n, unit, err := parseSinceParts(input)
	if err != nil {
		return 0, err
	}

	day := 24 * time.Hour
	switch unit {
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * day, nil
	case "w":
		return time.Duration(n) * 7 * day, nil
	default:
		return time.Duration(n) * 30 * day, nil
	}
}

func parseSinceParts(input string) (int, string, error) {
	m := sincePattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return 0, "", fmt.Errorf("%w: duration must be <N>h, <N>d, <N>w, or <N>m, got %q",
			fwerr.ErrValidation, input)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, "", fmt.Errorf("%w: duration count must be a positive integer, got %q",
			fwerr.ErrValidation, input)
	}
	return n, m[2], nil
}
