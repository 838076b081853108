// Package github implements the GitHubClient and GitHubWriter ports against
// the GitHub REST and GraphQL APIs.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.GitHubClient = (*Client)(nil)
	_ driven.GitHubWriter = (*Client)(nil)
)

// Client talks to GitHub. Reads that need nested pagination and every
// mutation go through GraphQL; metadata edits and commit file listings use
// the REST API.
type Client struct {
	rest *gh.Client
	gql  *githubv4.Client
}

// NewClient creates a GitHub API client with the following REST transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// GraphQL requests share the token through an oauth2 transport with a
// 30-second timeout as a safety net alongside context cancellation.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	rest := gh.NewClient(rateLimitClient).WithAuthToken(token)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gqlHTTP := oauth2.NewClient(context.Background(), ts)
	gqlHTTP.Timeout = 30 * time.Second

	return &Client{
		rest: rest,
		gql:  githubv4.NewClient(gqlHTTP),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest
// server. The GraphQL endpoint is derived from baseURL so the same server can
// intercept both APIs.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	rest := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	rest.BaseURL = u

	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		rest: rest,
		gql:  githubv4.NewEnterpriseClient(graphqlU.String(), httpClient),
	}, nil
}

// query runs a GraphQL query with one immediate retry on transport-level
// failures. Queries are read-only, so the retry is safe; mutations never go
// through here.
func (c *Client) query(ctx context.Context, op string, q any, vars map[string]any) error {
	err := c.gql.Query(ctx, q, vars)

	var uerr *url.Error
	if errors.As(err, &uerr) && ctx.Err() == nil {
		slog.Debug("github graphql transport error, retrying once", "op", op, "error", err)
		err = c.gql.Query(ctx, q, vars)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", op, classifyGraphQL(err))
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, op string, m any, input githubv4.Input) error {
	if err := c.gql.Mutate(ctx, m, input, nil); err != nil {
		return fmt.Errorf("%s: %w", op, classifyGraphQL(err))
	}
	return nil
}

// FetchCommitFiles returns the paths touched by a commit. The REST commits
// endpoint paginates the file list for very large commits.
func (c *Client) FetchCommitFiles(ctx context.Context, repo, sha string) ([]string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var files []string

	for {
		commit, resp, err := c.rest.Repositories.GetCommit(ctx, owner, name, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("fetching commit files for %s@%s: %w", repo, sha, classifyREST(err))
		}

		logRateLimit(resp, repo+"/commit-files", opts.Page, len(commit.Files))

		for _, f := range commit.Files {
			files = append(files, f.GetFilename())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// logRateLimit logs the GitHub API rate limit status after each REST call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
