// Package dedupe provides the conditional-insert store behind trigger
// idempotency. First writer of a key wins; everyone else gets a no-op.
package dedupe

import (
	"context"
	"time"
)

// Store records dedupe keys with a TTL equal to the trigger window.
type Store interface {
	// Claim inserts the key if absent. Returns true when this caller won
	// the insert, false when the key already existed. Duplicate claims are
	// never an error.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Close() error
}
