// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// ActivityOpts controls one page of an activity fetch.
type ActivityOpts struct {
	First  int             // Page size; the client clamps to its maximum.
	After  string          // Resume cursor from a previous page, empty for the first.
	States []model.PRState // PR states to fetch, mapped to GitHub's OPEN/CLOSED/MERGED.
}

// ActivityPage is one page of pull requests ordered by updated_at descending.
type ActivityPage struct {
	PRs         []PRActivity
	EndCursor   string
	HasNextPage bool
}

// PRActivity is the raw activity of one pull request as fetched from GitHub.
// Child collections are complete: the client follows nested pagination before
// returning.
type PRActivity struct {
	Number    int
	Title     string
	Author    string
	State     string // GitHub's OPEN, CLOSED, or MERGED.
	IsDraft   bool
	URL       string
	Branch    string
	BaseRef   string
	Labels    []string
	Assignees []string
	CreatedAt time.Time
	UpdatedAt time.Time

	Reviews       []ReviewNode
	IssueComments []CommentNode
	ReviewThreads []ThreadNode
	Commits       []CommitNode
	CIRollup      string // Status check rollup state of the head commit, "" when absent.
}

// ReviewNode is a submitted pull request review.
type ReviewNode struct {
	ID          string // GraphQL node id.
	Author      string
	Body        string
	State       string // APPROVED, CHANGES_REQUESTED, COMMENTED, PENDING, DISMISSED.
	URL         string
	SubmittedAt time.Time
}

// CommentNode is an issue comment or a review thread comment.
type CommentNode struct {
	ID        string // GraphQL node id.
	Author    string
	Body      string
	URL       string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// ThreadNode is a review thread anchored to a file position.
type ThreadNode struct {
	ID         string // GraphQL node id of the thread.
	IsResolved bool
	Path       string
	Line       int
	Comments   []CommentNode
}

// CommitNode is one commit on the PR branch.
type CommitNode struct {
	SHA         string
	Author      string
	Message     string
	URL         string
	CommittedAt time.Time
}

// ThreadRef locates the review thread a comment belongs to.
type ThreadRef struct {
	ThreadID   string
	IsResolved bool
}

// GitHubClient defines the driven port for reading pull request activity
// from the GitHub API.
type GitHubClient interface {
	// FetchActivity returns one page of PRs with their full activity,
	// ordered by updated_at descending.
	FetchActivity(ctx context.Context, repo string, opts ActivityOpts) (*ActivityPage, error)

	// FetchPullRequestID returns the GraphQL node id of a PR.
	FetchPullRequestID(ctx context.Context, repo string, number int) (string, error)

	// FetchReviewThreadMap maps every review comment id of a PR to its
	// enclosing thread.
	FetchReviewThreadMap(ctx context.Context, repo string, number int) (map[string]ThreadRef, error)

	// FetchViewerLogin returns the login of the authenticated user.
	FetchViewerLogin(ctx context.Context) (string, error)

	// FetchCommitFiles returns the paths touched by a commit.
	FetchCommitFiles(ctx context.Context, repo, sha string) ([]string, error)
}
