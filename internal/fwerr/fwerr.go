// Package fwerr defines the error taxonomy shared across firewatch.
// Sentinel errors classify failures once, at the adapter boundary; every
// other layer wraps with fmt.Errorf("...: %w", err) and matches with
// errors.Is. The CLI maps the taxonomy to exit codes and user hints.
package fwerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAuth indicates GitHub rejected or could not find credentials.
	ErrAuth = errors.New("github authentication failed")

	// ErrNotFound indicates a PR, comment, or thread does not exist or is
	// not visible with the current token.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the GitHub API rate limit was exhausted.
	// Use AsRateLimit to recover the reset time.
	ErrRateLimited = errors.New("github rate limit exceeded")

	// ErrConflict indicates the remote state already matches the requested
	// change (already resolved, already reacted). Callers treat it as
	// success-with-flag, never as a failure.
	ErrConflict = errors.New("already in requested state")

	// ErrValidation indicates bad user input: malformed IDs, invalid
	// durations, missing required arguments.
	ErrValidation = errors.New("invalid input")

	// ErrConfig indicates the configuration could not be loaded or parsed.
	ErrConfig = errors.New("invalid configuration")

	// ErrRepoDetect indicates the target repository could not be determined
	// from flags, config, or the current git checkout.
	ErrRepoDetect = errors.New("repository could not be determined")

	// ErrTransport indicates a network-level failure talking to GitHub.
	ErrTransport = errors.New("network transport failed")

	// ErrGraphQL indicates the GraphQL API returned an error payload.
	// Use AsGraphQL to recover the server's messages.
	ErrGraphQL = errors.New("graphql request failed")

	// ErrStore indicates a local store failure.
	ErrStore = errors.New("local store failure")
)

// RateLimitError carries the reset time reported by GitHub alongside the
// ErrRateLimited sentinel.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s (resets %s)", ErrRateLimited, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// AsRateLimit unwraps err to a *RateLimitError if one is in the chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// GraphQLError carries the server's error message array alongside the
// ErrGraphQL sentinel.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return ErrGraphQL.Error()
	}
	return fmt.Sprintf("%s: %s", ErrGraphQL, strings.Join(e.Messages, "; "))
}

func (e *GraphQLError) Is(target error) bool { return target == ErrGraphQL }

// AsGraphQL unwraps err to a *GraphQLError if one is in the chain.
func AsGraphQL(err error) (*GraphQLError, bool) {
	var ge *GraphQLError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// PartialError reports a batch where some items failed and some succeeded.
// The CLI maps it to exit code 2.
type PartialError struct {
	Failed int
	Total  int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d operations failed", e.Failed, e.Total)
}

// Hint returns a one-line actionable suggestion for err, or "" when no
// hint applies. Printed by the CLI under the error line.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "Run `gh auth login` or set FIREWATCH_GITHUB_TOKEN"
	case errors.Is(err, ErrRateLimited):
		if rl, ok := AsRateLimit(err); ok && !rl.ResetAt.IsZero() {
			return fmt.Sprintf("Wait until %s or use a token with higher limits", rl.ResetAt.Local().Format(time.Kitchen))
		}
		return "Wait for the rate limit window to reset"
	case errors.Is(err, ErrRepoDetect):
		return "Pass --repo owner/name or run inside a GitHub checkout"
	case errors.Is(err, ErrConfig):
		return "Check config.toml and FIREWATCH_* environment overrides"
	default:
		return ""
	}
}
