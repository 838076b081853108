// Package localgit reads the local checkout through the git CLI.
package localgit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
	"github.com/firewatchhq/firewatch/internal/fwerr"
)

const commandTimeout = 5 * time.Second

type runnerFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Client implements driven.LocalGit by shelling to git.
type Client struct {
	run runnerFunc
}

var _ driven.LocalGit = (*Client)(nil)

// New returns a Client using the git binary on PATH.
func New() *Client {
	return &Client{run: runGit}
}

// DetectRepo parses the origin remote of dir into an owner/name slug.
func (c *Client) DetectRepo(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, dir, "remote", "get-url", "origin")
	if err != nil {
		return "", fmt.Errorf("%w: %s has no origin remote: %v", fwerr.ErrRepoDetect, dir, err)
	}
	repo, ok := parseRemote(string(out))
	if !ok {
		return "", fmt.Errorf("%w: cannot parse remote %q", fwerr.ErrRepoDetect, strings.TrimSpace(string(out)))
	}
	return repo, nil
}

// CurrentBranch returns the checked-out branch, empty on detached HEAD.
func (c *Client) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ChangedFiles returns the paths modified between base and head.
func (c *Client) ChangedFiles(ctx context.Context, dir, base, head string) ([]string, error) {
	out, err := c.run(ctx, dir, "diff", "--name-only", base+".."+head)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// LastCommitForFile returns the newest commit touching path, nil when the
// file has no history on the current branch.
func (c *Client) LastCommitForFile(ctx context.Context, dir, path string) (*driven.FileCommit, error) {
	out, err := c.run(ctx, dir, "log", "-1", "--format=%H%x00%cI", "--", path)
	if err != nil {
		return nil, err
	}

	line := strings.TrimSpace(string(out))
	if line == "" {
		return nil, nil
	}
	sha, stamp, ok := strings.Cut(line, "\x00")
	if !ok {
		return nil, fmt.Errorf("unexpected git log output %q", line)
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return nil, fmt.Errorf("parsing commit time %q: %w", stamp, err)
	}
	return &driven.FileCommit{SHA: sha, CommittedAt: at}, nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}
