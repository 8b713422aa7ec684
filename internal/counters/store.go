// Package counters holds the per-domain shared counters behind admission
// control and timeout tracking.
package counters

import (
	"context"
	"errors"
)

// ErrInvalidLimit is returned when an acquire is attempted with a non-positive ceiling.
var ErrInvalidLimit = errors.New("limit must be positive")

// Store keeps activeRunCount and timeoutCount per domain.
// All methods must be safe for concurrent use without lost updates.
type Store interface {
	// TryAcquire increments the domain's active run count if it is below limit.
	// It returns false without mutating state when the ceiling is reached.
	TryAcquire(ctx context.Context, domainID string, limit int) (bool, error)

	// Release decrements the domain's active run count, floored at zero.
	Release(ctx context.Context, domainID string) error

	// ActiveRuns returns the domain's active run count.
	ActiveRuns(ctx context.Context, domainID string) (int, error)

	// IncrementTimeouts records one timeout and returns the new count.
	IncrementTimeouts(ctx context.Context, domainID string) (int, error)

	// Timeouts returns the domain's current timeout count.
	Timeouts(ctx context.Context, domainID string) (int, error)

	// ResetTimeouts zeroes every domain's timeout count.
	ResetTimeouts(ctx context.Context) error

	// Sweep drops entries whose counters are all zero.
	Sweep(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
