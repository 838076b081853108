package driven

import (
	"context"
	"time"
)

// FileCommit is the most recent local commit touching a file.
type FileCommit struct {
	SHA         string
	CommittedAt time.Time
}

// LocalGit defines the driven port for reading the local git checkout.
// All operations are best-effort: a missing checkout or a command failure
// returns an error the caller may downgrade to a skipped enrichment.
type LocalGit interface {
	// DetectRepo returns the owner/name of the origin remote for the
	// working directory, or fwerr.ErrRepoDetect when none can be parsed.
	DetectRepo(ctx context.Context, dir string) (string, error)

	// CurrentBranch returns the checked-out branch name, empty on a
	// detached HEAD.
	CurrentBranch(ctx context.Context, dir string) (string, error)

	// ChangedFiles returns the paths modified between base and head.
	ChangedFiles(ctx context.Context, dir, base, head string) ([]string, error)

	// LastCommitForFile returns the newest commit touching path on the
	// current branch, or nil when no commit touches it.
	LastCommitForFile(ctx context.Context, dir, path string) (*FileCommit, error)
}
