package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

type threadMapQuery struct {
	Repository struct {
		PullRequest struct {
			ReviewThreads struct {
				PageInfo pageInfo
				Nodes    []struct {
					ID         string
					IsResolved bool
					Comments   struct {
						Nodes []struct {
							ID string
						}
					} `graphql:"comments(first: 100)"`
				}
			} `graphql:"reviewThreads(first: 100, after: $after)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchReviewThreadMap maps every review comment node id of a PR to its
// enclosing thread and the thread's resolution state. The thread connection
// is paginated; threads with more than 100 comments only map the first 100.
func (c *Client) FetchReviewThreadMap(ctx context.Context, repo string, number int) (map[string]driven.ThreadRef, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	result := make(map[string]driven.ThreadRef)
	after := (*githubv4.String)(nil)

	for {
		vars := map[string]any{
			"owner":  githubv4.String(owner),
			"name":   githubv4.String(name),
			"number": githubv4.Int(number),
			"after":  after,
		}

		var q threadMapQuery
		op := fmt.Sprintf("fetching review threads for %s#%d", repo, number)
		if err := c.query(ctx, op, &q, vars); err != nil {
			return nil, err
		}

		conn := q.Repository.PullRequest.ReviewThreads
		for _, thread := range conn.Nodes {
			ref := driven.ThreadRef{ThreadID: thread.ID, IsResolved: thread.IsResolved}
			for _, cm := range thread.Comments.Nodes {
				result[cm.ID] = ref
			}
		}

		if !conn.PageInfo.HasNextPage {
			break
		}
		after = githubv4.NewString(githubv4.String(conn.PageInfo.EndCursor))
	}

	return result, nil
}

// FetchPullRequestID returns the GraphQL node id of a PR, needed as the
// subject of comment and draft mutations.
func (c *Client) FetchPullRequestID(ctx context.Context, repo string, number int) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	var q struct {
		Repository struct {
			PullRequest struct {
				ID string
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"number": githubv4.Int(number),
	}

	op := fmt.Sprintf("fetching node id for %s#%d", repo, number)
	if err := c.query(ctx, op, &q, vars); err != nil {
		return "", err
	}

	return q.Repository.PullRequest.ID, nil
}

// FetchViewerLogin returns the login of the token's user.
func (c *Client) FetchViewerLogin(ctx context.Context) (string, error) {
	var q struct {
		Viewer struct {
			Login string
		}
	}

	if err := c.query(ctx, "fetching viewer login", &q, nil); err != nil {
		return "", err
	}

	return q.Viewer.Login, nil
}
