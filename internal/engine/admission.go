package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"aivisibility/internal/counters"
)

// releaseTimeout bounds a release call made after the run's own context is gone.
const releaseTimeout = 5 * time.Second

// Admission caps the number of in-flight runs per domain.
type Admission struct {
	store counters.Store
	limit int
}

// NewAdmission creates an admission controller with the given per-domain ceiling.
func NewAdmission(store counters.Store, limit int) *Admission {
	return &Admission{store: store, limit: limit}
}

// TryAcquire takes a run slot for domainID if one is free.
func (a *Admission) TryAcquire(ctx context.Context, domainID string) (bool, error) {
	return a.store.TryAcquire(ctx, domainID, a.limit)
}

// Release frees a run slot for domainID.
func (a *Admission) Release(ctx context.Context, domainID string) error {
	return a.store.Release(ctx, domainID)
}

// Acquire takes a slot and returns a release func that is safe to call any
// number of times; only the first call frees the slot.
func (a *Admission) Acquire(ctx context.Context, domainID string) (func(), error) {
	ok, err := a.TryAcquire(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTooManyRuns
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := a.Release(rctx, domainID); err != nil {
				slog.Error("failed to release run slot", "domain_id", domainID, "error", err)
			}
		})
	}
	return release, nil
}

// ActiveRuns returns the number of slots held for domainID.
func (a *Admission) ActiveRuns(ctx context.Context, domainID string) (int, error) {
	return a.store.ActiveRuns(ctx, domainID)
}

// Limit returns the per-domain ceiling.
func (a *Admission) Limit() int {
	return a.limit
}
