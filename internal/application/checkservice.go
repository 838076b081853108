package application

import (
	"context"
	"log/slog"
	"sort"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// CheckResult summarizes one staleness check over a repo.
type CheckResult struct {
	Repo        string `json:"repo"`
	Checked     int    `json:"checked"`
	Modified    int    `json:"modified"`
	Approximate int    `json:"approximate"`
}

// CheckService determines, per review comment, whether later commits on the
// same PR touched the commented file, and records the verdict on the entry.
type CheckService struct {
	entries driven.EntryStore
	gh      driven.GitHubClient
}

// NewCheckService creates a CheckService.
func NewCheckService(entries driven.EntryStore, gh driven.GitHubClient) *CheckService {
	return &CheckService{entries: entries, gh: gh}
}

// commitFiles caches one commit-file resolution. known is false when the
// resolver could not answer, which downgrades the commit to the conservative
// count-everything path.
type commitFiles struct {
	files []string
	known bool
}

// Check examines every review-comment entry of the repo against the commits
// that landed on its PR afterwards. When the commit-file resolver cannot
// answer for a commit, that commit counts unconditionally and the activity
// block is flagged approximate.
func (s *CheckService) Check(ctx context.Context, repo string) (*CheckResult, error) {
	rows, err := s.entries.QueryEntries(ctx, model.Filter{ExactRepo: repo})
	if err != nil {
		return nil, err
	}

	commitsByPR := make(map[int][]model.Entry)
	for _, e := range rows {
		if e.Type == model.EntryTypeCommit {
			commitsByPR[e.PR] = append(commitsByPR[e.PR], e)
		}
	}
	for pr := range commitsByPR {
		cs := commitsByPR[pr]
		sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
	}

	resolved := make(map[string]commitFiles)
	result := &CheckResult{Repo: repo}

	for _, e := range rows {
		if !e.IsReviewComment() || e.File == "" {
			continue
		}

		activity := s.activityAfter(ctx, repo, e, commitsByPR[e.PR], resolved)
		e.FileActivityAfter = &activity
		if err := s.entries.UpdateEntry(ctx, e); err != nil {
			return result, err
		}

		result.Checked++
		if activity.Modified {
			result.Modified++
		}
		if activity.Approximate {
			result.Approximate++
		}
	}

	slog.Info("staleness check complete",
		"repo", repo,
		"checked", result.Checked,
		"modified", result.Modified,
		"approximate", result.Approximate,
	)

	return result, nil
}

// activityAfter counts the commits newer than the entry that touched its
// file. commits must be in chronological order.
func (s *CheckService) activityAfter(ctx context.Context, repo string, e model.Entry, commits []model.Entry, resolved map[string]commitFiles) model.FileActivity {
	var activity model.FileActivity

	for _, c := range commits {
		if !c.CreatedAt.After(e.CreatedAt) {
			continue
		}

		cf, ok := resolved[c.GHID]
		if !ok {
			files, err := s.gh.FetchCommitFiles(ctx, repo, c.GHID)
			if err != nil {
				slog.Debug("commit files unresolved, counting commit unconditionally",
					"repo", repo, "sha", c.GHID, "error", err)
				files = nil
			}
			cf = commitFiles{files: files, known: err == nil && files != nil}
			resolved[c.GHID] = cf
		}

		switch {
		case cf.known && !containsPath(cf.files, e.File):
			continue
		case !cf.known:
			activity.Approximate = true
		}

		activity.CommitsTouchingFile++
		if activity.LatestCommitAt == nil || c.CreatedAt.After(*activity.LatestCommitAt) {
			at := c.CreatedAt
			activity.LatestCommit = c.GHID
			activity.LatestCommitAt = &at
		}
	}

	activity.Modified = activity.CommitsTouchingFile > 0
	return activity
}
