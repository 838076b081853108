package github

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/firewatchhq/firewatch/internal/fwerr"
)

const tokenEnvVar = "FIREWATCH_GITHUB_TOKEN"

// DetectToken resolves a GitHub token from, in order: the configured value,
// the gh CLI's stored credentials, and the environment. The returned source
// names where the token came from for doctor output.
func DetectToken(ctx context.Context, configured string) (token, source string, err error) {
	if configured != "" {
		return configured, "config", nil
	}

	if t, err := ghAuthToken(ctx); err == nil {
		return t, "gh cli", nil
	} else {
		slog.Debug("gh auth token unavailable", "error", err)
	}

	if t := os.Getenv(tokenEnvVar); t != "" {
		return t, tokenEnvVar, nil
	}

	return "", "", fmt.Errorf("no GitHub token found (tried config github_token, `gh auth token`, %s): %w", tokenEnvVar, fwerr.ErrAuth)
}

// ghAuthToken runs `gh auth token` and returns the stored OAuth token.
func ghAuthToken(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", fmt.Errorf("gh not installed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned empty")
	}
	return token, nil
}
