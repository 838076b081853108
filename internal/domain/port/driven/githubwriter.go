package driven

import "context"

// CommentRef identifies a comment created by a write operation.
type CommentRef struct {
	ID  string // GraphQL node id of the new comment.
	URL string
}

// PREdit describes metadata changes to apply to a pull request. Nil and
// empty fields are left unchanged. Each populated field is an independent
// mutation; implementations apply all of them and collect failures rather
// than aborting on the first.
type PREdit struct {
	Title           *string
	Body            *string
	Base            *string
	Draft           *bool // true converts to draft, false marks ready for review.
	AddLabels       []string
	RemoveLabels    []string
	AddReviewers    []string
	RemoveReviewers []string
	AddAssignees    []string
	RemoveAssignees []string
	Milestone       *int
	ClearMilestone  bool
}

// Empty reports whether the edit would change nothing.
func (e PREdit) Empty() bool {
	return e.Title == nil && e.Body == nil && e.Base == nil && e.Draft == nil &&
		len(e.AddLabels) == 0 && len(e.RemoveLabels) == 0 &&
		len(e.AddReviewers) == 0 && len(e.RemoveReviewers) == 0 &&
		len(e.AddAssignees) == 0 && len(e.RemoveAssignees) == 0 &&
		e.Milestone == nil && !e.ClearMilestone
}

// GitHubWriter defines the driven port for GitHub write operations.
// It is intentionally separate from GitHubClient (read operations) following
// the Interface Segregation Principle.
type GitHubWriter interface {
	// AddIssueComment posts a top-level (non-diff) comment on a pull request.
	AddIssueComment(ctx context.Context, repo string, number int, body string) (*CommentRef, error)

	// AddReviewThreadReply posts a reply inside an existing review thread.
	AddReviewThreadReply(ctx context.Context, threadID, body string) (*CommentRef, error)

	// ResolveReviewThread marks a review thread resolved.
	ResolveReviewThread(ctx context.Context, threadID string) error

	// AddReaction adds an emoji reaction to a comment by node id.
	// content is a GraphQL ReactionContent name such as "THUMBS_UP".
	AddReaction(ctx context.Context, subjectID, content string) error

	// SubmitReview submits a pull request review.
	// event must be one of "APPROVE", "REQUEST_CHANGES", or "COMMENT".
	SubmitReview(ctx context.Context, repo string, number int, event, body string) error

	// EditPullRequest applies metadata changes to a pull request.
	EditPullRequest(ctx context.Context, repo string, number int, edit PREdit) error
}
