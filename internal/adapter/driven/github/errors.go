package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// classifyREST maps go-github errors onto the fwerr taxonomy. Unrecognized
// errors pass through unchanged so the original detail survives wrapping.
func classifyREST(err error) error {
	if err == nil {
		return nil
	}

	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return &fwerr.RateLimitError{ResetAt: rle.Rate.Reset.Time}
	}

	var arle *gh.AbuseRateLimitError
	if errors.As(err, &arle) {
		reset := time.Time{}
		if arle.RetryAfter != nil {
			reset = time.Now().Add(*arle.RetryAfter)
		}
		return &fwerr.RateLimitError{ResetAt: reset}
	}

	var ger *gh.ErrorResponse
	if errors.As(err, &ger) && ger.Response != nil {
		switch ger.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", fwerr.ErrAuth, ger.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", fwerr.ErrNotFound, ger.Message)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", fwerr.ErrValidation, ger.Message)
		}
		return err
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %v", fwerr.ErrTransport, err)
	}

	return err
}

// classifyGraphQL maps GraphQL failures onto the fwerr taxonomy. The
// githubv4 client surfaces server errors as message strings, so matching is
// necessarily textual.
func classifyGraphQL(err error) error {
	if err == nil {
		return nil
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %v", fwerr.ErrTransport, err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "bad credentials"), strings.Contains(msg, "status code: 401"):
		return fmt.Errorf("%w: %s", fwerr.ErrAuth, msg)
	case strings.Contains(lower, "rate limit exceeded"):
		return &fwerr.RateLimitError{}
	case strings.Contains(msg, "Could not resolve"):
		return fmt.Errorf("%w: %s", fwerr.ErrNotFound, msg)
	}

	return &fwerr.GraphQLError{Messages: strings.Split(msg, "; ")}
}
