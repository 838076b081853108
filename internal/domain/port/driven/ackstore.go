package driven

import (
	"context"

	"github.com/firewatchhq/firewatch/internal/domain/model"
)

// AckStore defines the driven port for local feedback acknowledgements.
// Acks never leave the machine except as a best-effort reaction; re-acking
// an acked comment is a no-op.
type AckStore interface {
	// Ack records the acknowledgement. Returns created=false when the
	// (repo, comment) pair was already acked.
	Ack(ctx context.Context, ack model.Ack) (created bool, err error)

	IsAcked(ctx context.Context, repo, commentID string) (bool, error)

	// List returns acks for a repo, or all repos when repo is empty,
	// newest first.
	List(ctx context.Context, repo string) ([]model.Ack, error)

	// Remove deletes an ack. Returns fwerr.ErrNotFound if absent.
	Remove(ctx context.Context, repo, commentID string) error

	// AckedSet returns the acked comment ids for a repo as a set.
	AckedSet(ctx context.Context, repo string) (map[string]bool, error)
}
