package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// AddIssueComment posts a top-level comment on a pull request and returns a
// reference to the created comment.
func (c *Client) AddIssueComment(ctx context.Context, repo string, number int, body string) (*driven.CommentRef, error) {
	prID, err := c.FetchPullRequestID(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	var m struct {
		AddComment struct {
			CommentEdge struct {
				Node struct {
					ID  string
					URL string
				}
			}
		} `graphql:"addComment(input: $input)"`
	}

	input := githubv4.AddCommentInput{
		SubjectID: githubv4.ID(prID),
		Body:      githubv4.String(body),
	}

	op := fmt.Sprintf("posting comment on %s#%d", repo, number)
	if err := c.mutate(ctx, op, &m, input); err != nil {
		return nil, err
	}

	node := m.AddComment.CommentEdge.Node
	return &driven.CommentRef{ID: node.ID, URL: node.URL}, nil
}

// AddReviewThreadReply posts a reply inside an existing review thread. The
// dedicated mutation keeps the reply out of any pending review.
func (c *Client) AddReviewThreadReply(ctx context.Context, threadID, body string) (*driven.CommentRef, error) {
	var m struct {
		AddPullRequestReviewThreadReply struct {
			Comment struct {
				ID  string
				URL string
			}
		} `graphql:"addPullRequestReviewThreadReply(input: $input)"`
	}

	input := githubv4.AddPullRequestReviewThreadReplyInput{
		PullRequestReviewThreadID: githubv4.ID(threadID),
		Body:                      githubv4.String(body),
	}

	if err := c.mutate(ctx, "replying to review thread", &m, input); err != nil {
		return nil, err
	}

	comment := m.AddPullRequestReviewThreadReply.Comment
	return &driven.CommentRef{ID: comment.ID, URL: comment.URL}, nil
}

// ResolveReviewThread marks a review thread resolved. Resolving an already
// resolved thread succeeds on the server side.
func (c *Client) ResolveReviewThread(ctx context.Context, threadID string) error {
	var m struct {
		ResolveReviewThread struct {
			Thread struct {
				IsResolved bool
			}
		} `graphql:"resolveReviewThread(input: $input)"`
	}

	input := githubv4.ResolveReviewThreadInput{
		ThreadID: githubv4.ID(threadID),
	}

	return c.mutate(ctx, "resolving review thread", &m, input)
}

// AddReaction adds an emoji reaction to a comment or review by node id.
// content is a GraphQL ReactionContent name such as "THUMBS_UP". Reacting
// twice with the same emoji is a server-side no-op.
func (c *Client) AddReaction(ctx context.Context, subjectID, content string) error {
	var m struct {
		AddReaction struct {
			Reaction struct {
				Content string
			}
		} `graphql:"addReaction(input: $input)"`
	}

	input := githubv4.AddReactionInput{
		SubjectID: githubv4.ID(subjectID),
		Content:   githubv4.ReactionContent(content),
	}

	return c.mutate(ctx, "adding reaction", &m, input)
}
