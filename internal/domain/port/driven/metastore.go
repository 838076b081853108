package driven

import "context"

// MetaStore defines the driven port for small key-value state that must
// survive restarts, such as the last lookout timestamp.
type MetaStore interface {
	// Get returns the value for key, or ("", nil) when unset.
	Get(ctx context.Context, key string) (string, error)

	Set(ctx context.Context, key, value string) error

	Delete(ctx context.Context, key string) error
}
