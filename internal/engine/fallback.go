package engine

import (
	"context"
	"log/slog"

	"aivisibility/internal/counters"
)

// Rosters holds the two model configurations. Fallback is a strict subset of Full.
type Rosters struct {
	Full     []string
	Fallback []string
}

// TimeoutTracker counts recent model timeouts per domain.
type TimeoutTracker struct {
	store     counters.Store
	threshold int
}

// NewTimeoutTracker creates a tracker that trips at threshold timeouts.
func NewTimeoutTracker(store counters.Store, threshold int) *TimeoutTracker {
	return &TimeoutTracker{store: store, threshold: threshold}
}

// RecordTimeout increments the domain's timeout count. tripped is true only
// for the increment that reaches the threshold.
func (t *TimeoutTracker) RecordTimeout(ctx context.Context, domainID string) (count int, tripped bool) {
	n, err := t.store.IncrementTimeouts(ctx, domainID)
	if err != nil {
		slog.Warn("failed to record model timeout", "domain_id", domainID, "error", err)
		return 0, false
	}
	return n, n == t.threshold
}

// ShouldUseFallback reports whether the domain has reached the threshold.
// Store errors degrade to the full roster.
func (t *TimeoutTracker) ShouldUseFallback(ctx context.Context, domainID string) bool {
	n, err := t.store.Timeouts(ctx, domainID)
	if err != nil {
		slog.Warn("failed to read timeout count", "domain_id", domainID, "error", err)
		return false
	}
	return n >= t.threshold
}

// FallbackSelector chooses the roster for a domain at dispatch time.
type FallbackSelector struct {
	rosters Rosters
	tracker *TimeoutTracker
}

// NewFallbackSelector creates a selector over the given rosters.
func NewFallbackSelector(rosters Rosters, tracker *TimeoutTracker) *FallbackSelector {
	return &FallbackSelector{rosters: rosters, tracker: tracker}
}

// Select returns the active roster and whether it is the degraded one.
func (s *FallbackSelector) Select(ctx context.Context, domainID string) ([]string, bool) {
	if s.tracker.ShouldUseFallback(ctx, domainID) {
		return s.rosters.Fallback, true
	}
	return s.rosters.Full, false
}

// RecordTimeout forwards to the tracker.
func (s *FallbackSelector) RecordTimeout(ctx context.Context, domainID string) (int, bool) {
	return s.tracker.RecordTimeout(ctx, domainID)
}

// Rosters returns the configured rosters.
func (s *FallbackSelector) Rosters() Rosters {
	return s.rosters
}
