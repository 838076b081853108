package github_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/firewatchhq/firewatch/internal/adapter/driven/github"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// newTestClient creates a Client backed by the given httptest handler. The
// handler serves both the REST API and, under /graphql, the GraphQL API.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	require.NoError(t, err)

	return client
}

// graphqlRequest mirrors the POST body the GraphQL client sends.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func decodeGraphQL(t *testing.T, r *http.Request) graphqlRequest {
	t.Helper()
	var req graphqlRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestFetchViewerLogin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		req := decodeGraphQL(t, r)
		assert.Contains(t, req.Query, "viewer")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"viewer":{"login":"octocat"}}}`)
	})

	client := newTestClient(t, handler)
	login, err := client.FetchViewerLogin(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "octocat", login)
}

func TestFetchCommitFiles_SinglePage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/repo/commits/abc123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sha": "abc123",
			"files": []map[string]any{
				{"filename": "internal/sync/service.go"},
				{"filename": "internal/sync/service_test.go"},
			},
		})
	})

	client := newTestClient(t, handler)
	files, err := client.FetchCommitFiles(context.Background(), "owner/repo", "abc123")

	require.NoError(t, err)
	assert.Equal(t, []string{"internal/sync/service.go", "internal/sync/service_test.go"}, files)
}

func TestFetchCommitFiles_Pagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")

		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
			json.NewEncoder(w).Encode(map[string]any{
				"sha":   "abc123",
				"files": []map[string]any{{"filename": "a.go"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sha":   "abc123",
			"files": []map[string]any{{"filename": "b.go"}},
		})
	})

	client := newTestClient(t, handler)
	files, err := client.FetchCommitFiles(context.Background(), "owner/repo", "abc123")

	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, files)
}

func TestFetchCommitFiles_InvalidRepoName(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be called for invalid repo name")
	})

	client := newTestClient(t, handler)

	tests := []struct {
		name string
		repo string
	}{
		{name: "no slash", repo: "invalid"},
		{name: "empty owner", repo: "/repo"},
		{name: "empty repo", repo: "owner/"},
		{name: "empty string", repo: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.FetchCommitFiles(context.Background(), tc.repo, "abc123")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid repo name")
		})
	}
}

func TestRESTErrors_Classified(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		want    error
	}{
		{
			name:   "401 -> auth",
			status: http.StatusUnauthorized,
			body:   `{"message":"Bad credentials"}`,
			want:   fwerr.ErrAuth,
		},
		{
			name:   "404 -> not found",
			status: http.StatusNotFound,
			body:   `{"message":"Not Found"}`,
			want:   fwerr.ErrNotFound,
		},
		{
			name:   "403 without rate limit headers -> auth",
			status: http.StatusForbidden,
			body:   `{"message":"Resource not accessible by integration"}`,
			want:   fwerr.ErrAuth,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			client := newTestClient(t, handler)
			_, err := client.FetchCommitFiles(context.Background(), "owner/repo", "abc123")

			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestRESTErrors_RateLimit(t *testing.T) {
	const resetEpoch = 1777000000

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(resetEpoch))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	})

	client := newTestClient(t, handler)
	_, err := client.FetchCommitFiles(context.Background(), "owner/repo", "abc123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, fwerr.ErrRateLimited), "got %v", err)

	rl, ok := fwerr.AsRateLimit(err)
	require.True(t, ok)
	assert.Equal(t, int64(resetEpoch), rl.ResetAt.Unix())
}

func TestDetectToken_ConfiguredWins(t *testing.T) {
	token, source, err := ghAdapter.DetectToken(context.Background(), "ghp_configured")

	require.NoError(t, err)
	assert.Equal(t, "ghp_configured", token)
	assert.Equal(t, "config", source)
}

func TestDetectToken_EnvFallback(t *testing.T) {
	t.Setenv("PATH", t.TempDir()) // no gh binary in sight
	t.Setenv("FIREWATCH_GITHUB_TOKEN", "ghp_env")

	token, source, err := ghAdapter.DetectToken(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "ghp_env", token)
	assert.Equal(t, "FIREWATCH_GITHUB_TOKEN", source)
}

func TestDetectToken_NothingFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("FIREWATCH_GITHUB_TOKEN", "")

	_, _, err := ghAdapter.DetectToken(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, fwerr.ErrAuth))
	assert.Contains(t, err.Error(), "gh auth token")
	assert.Contains(t, err.Error(), "FIREWATCH_GITHUB_TOKEN")
}
