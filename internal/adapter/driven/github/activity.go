package github

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/firewatchhq/firewatch/internal/domain/model"
	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// PR page size bounds for FetchActivity. Child connections use fixed page
// sizes baked into the query and are followed to completion when a PR has
// more activity than one page carries.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type pageInfo struct {
	EndCursor   string
	HasNextPage bool
}

type actor struct {
	Login string
}

type reviewNode struct {
	ID          string
	Author      actor
	Body        string
	State       string
	URL         string
	SubmittedAt time.Time
}

type commentNode struct {
	ID        string
	Author    actor
	Body      string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type threadNode struct {
	ID         string
	IsResolved bool
	Path       string
	Line       int
	Comments   struct {
		PageInfo pageInfo
		Nodes    []commentNode
	} `graphql:"comments(first: 20)"`
}

type commitNode struct {
	Commit struct {
		Oid           string
		Message       string
		URL           string
		CommittedDate time.Time
		Author        struct {
			Name string
			User actor
		}
		StatusCheckRollup struct {
			State string
		}
	}
}

type prNode struct {
	Number      int
	Title       string
	Author      actor
	State       string
	IsDraft     bool
	URL         string
	HeadRefName string
	BaseRefName string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Labels struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"labels(first: 20)"`

	Assignees struct {
		Nodes []actor
	} `graphql:"assignees(first: 10)"`

	Reviews struct {
		PageInfo pageInfo
		Nodes    []reviewNode
	} `graphql:"reviews(first: 50)"`

	Comments struct {
		PageInfo pageInfo
		Nodes    []commentNode
	} `graphql:"comments(first: 50)"`

	ReviewThreads struct {
		PageInfo pageInfo
		Nodes    []threadNode
	} `graphql:"reviewThreads(first: 50)"`

	Commits struct {
		PageInfo pageInfo
		Nodes    []commitNode
	} `graphql:"commits(first: 100)"`
}

type activityQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo pageInfo
			Nodes    []prNode
		} `graphql:"pullRequests(first: $first, after: $after, states: $states, orderBy: {field: UPDATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type moreReviewsQuery struct {
	Repository struct {
		PullRequest struct {
			Reviews struct {
				PageInfo pageInfo
				Nodes    []reviewNode
			} `graphql:"reviews(first: 50, after: $after)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type moreCommentsQuery struct {
	Repository struct {
		PullRequest struct {
			Comments struct {
				PageInfo pageInfo
				Nodes    []commentNode
			} `graphql:"comments(first: 50, after: $after)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type moreThreadsQuery struct {
	Repository struct {
		PullRequest struct {
			ReviewThreads struct {
				PageInfo pageInfo
				Nodes    []threadNode
			} `graphql:"reviewThreads(first: 50, after: $after)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type moreCommitsQuery struct {
	Repository struct {
		PullRequest struct {
			Commits struct {
				PageInfo pageInfo
				Nodes    []commitNode
			} `graphql:"commits(first: 100, after: $after)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type moreThreadCommentsQuery struct {
	Node struct {
		Thread struct {
			Comments struct {
				PageInfo pageInfo
				Nodes    []commentNode
			} `graphql:"comments(first: 50, after: $after)"`
		} `graphql:"... on PullRequestReviewThread"`
	} `graphql:"node(id: $id)"`
}

// FetchActivity returns one page of PRs with their full activity, ordered by
// updated_at descending. Child connections that report further pages are
// fetched to completion before the page is returned, so every PRActivity in
// the result is complete.
func (c *Client) FetchActivity(ctx context.Context, repo string, opts driven.ActivityOpts) (*driven.ActivityPage, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	first := opts.First
	if first <= 0 {
		first = defaultPageSize
	}
	if first > maxPageSize {
		first = maxPageSize
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"first":  githubv4.Int(first),
		"after":  cursor(opts.After),
		"states": graphqlStates(opts.States),
	}

	var q activityQuery
	if err := c.query(ctx, fmt.Sprintf("fetching activity for %s", repo), &q, vars); err != nil {
		return nil, err
	}

	conn := q.Repository.PullRequests
	page := &driven.ActivityPage{
		EndCursor:   conn.PageInfo.EndCursor,
		HasNextPage: conn.PageInfo.HasNextPage,
	}

	for _, node := range conn.Nodes {
		pr, err := c.completePR(ctx, owner, name, node)
		if err != nil {
			return nil, err
		}
		page.PRs = append(page.PRs, pr)
	}

	return page, nil
}

// completePR maps one PR node to the port type, following any child
// connection that has further pages.
func (c *Client) completePR(ctx context.Context, owner, name string, node prNode) (driven.PRActivity, error) {
	pr := driven.PRActivity{
		Number:    node.Number,
		Title:     node.Title,
		Author:    node.Author.Login,
		State:     node.State,
		IsDraft:   node.IsDraft,
		URL:       node.URL,
		Branch:    node.HeadRefName,
		BaseRef:   node.BaseRefName,
		CreatedAt: node.CreatedAt,
		UpdatedAt: node.UpdatedAt,
	}
	for _, l := range node.Labels.Nodes {
		pr.Labels = append(pr.Labels, l.Name)
	}
	for _, a := range node.Assignees.Nodes {
		pr.Assignees = append(pr.Assignees, a.Login)
	}

	var err error
	if pr.Reviews, err = c.allReviews(ctx, owner, name, node); err != nil {
		return pr, err
	}
	if pr.IssueComments, err = c.allComments(ctx, owner, name, node); err != nil {
		return pr, err
	}
	if pr.ReviewThreads, err = c.allThreads(ctx, owner, name, node); err != nil {
		return pr, err
	}
	if pr.Commits, pr.CIRollup, err = c.allCommits(ctx, owner, name, node); err != nil {
		return pr, err
	}

	return pr, nil
}

func (c *Client) allReviews(ctx context.Context, owner, name string, node prNode) ([]driven.ReviewNode, error) {
	out := make([]driven.ReviewNode, 0, len(node.Reviews.Nodes))
	for _, r := range node.Reviews.Nodes {
		out = append(out, mapReview(r))
	}

	info := node.Reviews.PageInfo
	for info.HasNextPage {
		var q moreReviewsQuery
		op := fmt.Sprintf("fetching more reviews for %s/%s#%d", owner, name, node.Number)
		if err := c.query(ctx, op, &q, prVars(owner, name, node.Number, info.EndCursor)); err != nil {
			return nil, err
		}
		conn := q.Repository.PullRequest.Reviews
		for _, r := range conn.Nodes {
			out = append(out, mapReview(r))
		}
		info = conn.PageInfo
	}

	return out, nil
}

func (c *Client) allComments(ctx context.Context, owner, name string, node prNode) ([]driven.CommentNode, error) {
	out := make([]driven.CommentNode, 0, len(node.Comments.Nodes))
	for _, cm := range node.Comments.Nodes {
		out = append(out, mapComment(cm))
	}

	info := node.Comments.PageInfo
	for info.HasNextPage {
		var q moreCommentsQuery
		op := fmt.Sprintf("fetching more comments for %s/%s#%d", owner, name, node.Number)
		if err := c.query(ctx, op, &q, prVars(owner, name, node.Number, info.EndCursor)); err != nil {
			return nil, err
		}
		conn := q.Repository.PullRequest.Comments
		for _, cm := range conn.Nodes {
			out = append(out, mapComment(cm))
		}
		info = conn.PageInfo
	}

	return out, nil
}

func (c *Client) allThreads(ctx context.Context, owner, name string, node prNode) ([]driven.ThreadNode, error) {
	raw := node.ReviewThreads.Nodes

	info := node.ReviewThreads.PageInfo
	for info.HasNextPage {
		var q moreThreadsQuery
		op := fmt.Sprintf("fetching more review threads for %s/%s#%d", owner, name, node.Number)
		if err := c.query(ctx, op, &q, prVars(owner, name, node.Number, info.EndCursor)); err != nil {
			return nil, err
		}
		conn := q.Repository.PullRequest.ReviewThreads
		raw = append(raw, conn.Nodes...)
		info = conn.PageInfo
	}

	out := make([]driven.ThreadNode, 0, len(raw))
	for _, t := range raw {
		mapped := driven.ThreadNode{
			ID:         t.ID,
			IsResolved: t.IsResolved,
			Path:       t.Path,
			Line:       t.Line,
		}
		for _, cm := range t.Comments.Nodes {
			mapped.Comments = append(mapped.Comments, mapComment(cm))
		}

		// Long threads overflow the per-thread comment page and are
		// completed through the node interface.
		cinfo := t.Comments.PageInfo
		for cinfo.HasNextPage {
			var q moreThreadCommentsQuery
			op := fmt.Sprintf("fetching more thread comments for %s/%s#%d", owner, name, node.Number)
			vars := map[string]any{
				"id":    githubv4.ID(t.ID),
				"after": githubv4.String(cinfo.EndCursor),
			}
			if err := c.query(ctx, op, &q, vars); err != nil {
				return nil, err
			}
			conn := q.Node.Thread.Comments
			for _, cm := range conn.Nodes {
				mapped.Comments = append(mapped.Comments, mapComment(cm))
			}
			cinfo = conn.PageInfo
		}

		out = append(out, mapped)
	}

	return out, nil
}

// allCommits returns the PR's commits in chronological order plus the status
// check rollup state of the head commit, which is the last node of the last
// page.
func (c *Client) allCommits(ctx context.Context, owner, name string, node prNode) ([]driven.CommitNode, string, error) {
	raw := node.Commits.Nodes

	info := node.Commits.PageInfo
	for info.HasNextPage {
		var q moreCommitsQuery
		op := fmt.Sprintf("fetching more commits for %s/%s#%d", owner, name, node.Number)
		if err := c.query(ctx, op, &q, prVars(owner, name, node.Number, info.EndCursor)); err != nil {
			return nil, "", err
		}
		conn := q.Repository.PullRequest.Commits
		raw = append(raw, conn.Nodes...)
		info = conn.PageInfo
	}

	out := make([]driven.CommitNode, 0, len(raw))
	for _, cn := range raw {
		out = append(out, mapCommit(cn))
	}

	rollup := ""
	if len(raw) > 0 {
		rollup = raw[len(raw)-1].Commit.StatusCheckRollup.State
	}

	return out, rollup, nil
}

func mapReview(n reviewNode) driven.ReviewNode {
	return driven.ReviewNode{
		ID:          n.ID,
		Author:      n.Author.Login,
		Body:        n.Body,
		State:       n.State,
		URL:         n.URL,
		SubmittedAt: n.SubmittedAt,
	}
}

// mapComment keeps UpdatedAt nil unless the comment was actually edited.
// GitHub reports updatedAt == createdAt for untouched comments.
func mapComment(n commentNode) driven.CommentNode {
	out := driven.CommentNode{
		ID:        n.ID,
		Author:    n.Author.Login,
		Body:      n.Body,
		URL:       n.URL,
		CreatedAt: n.CreatedAt,
	}
	if n.UpdatedAt.After(n.CreatedAt) {
		u := n.UpdatedAt
		out.UpdatedAt = &u
	}
	return out
}

// mapCommit prefers the GitHub login of the commit author and falls back to
// the git author name for commits without a linked account.
func mapCommit(n commitNode) driven.CommitNode {
	author := n.Commit.Author.User.Login
	if author == "" {
		author = n.Commit.Author.Name
	}
	return driven.CommitNode{
		SHA:         n.Commit.Oid,
		Author:      author,
		Message:     n.Commit.Message,
		URL:         n.Commit.URL,
		CommittedAt: n.Commit.CommittedDate,
	}
}

func prVars(owner, name string, number int, after string) map[string]any {
	return map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"number": githubv4.Int(number),
		"after":  githubv4.String(after),
	}
}

// cursor builds the nullable after-cursor variable. GraphQL requires null,
// not an empty string, on the first page.
func cursor(after string) *githubv4.String {
	if after == "" {
		return nil
	}
	return githubv4.NewString(githubv4.String(after))
}

// graphqlStates maps domain PR states to the GitHub enum. Draft is a
// sub-state of open on the server, and an empty input means all states.
func graphqlStates(states []model.PRState) []githubv4.PullRequestState {
	if len(states) == 0 {
		return []githubv4.PullRequestState{
			githubv4.PullRequestStateOpen,
			githubv4.PullRequestStateClosed,
			githubv4.PullRequestStateMerged,
		}
	}

	var out []githubv4.PullRequestState
	seen := make(map[githubv4.PullRequestState]bool)
	for _, s := range states {
		gs := githubv4.PullRequestStateOpen
		switch s {
		case model.PRStateClosed:
			gs = githubv4.PullRequestStateClosed
		case model.PRStateMerged:
			gs = githubv4.PullRequestStateMerged
		}
		if !seen[gs] {
			seen[gs] = true
			out = append(out, gs)
		}
	}
	return out
}
