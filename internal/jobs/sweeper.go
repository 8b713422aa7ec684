package jobs

import (
	"context"
	"log"
	"time"

	"aivisibility/internal/counters"
)

// Sweeper periodically resets per-domain timeout counters and prunes idle
// admission entries from the counter store.
type Sweeper struct {
	store         counters.Store
	resetInterval time.Duration
	sweepInterval time.Duration
}

// NewSweeper creates a new sweeper.
func NewSweeper(store counters.Store, resetInterval, sweepInterval time.Duration) *Sweeper {
	return &Sweeper{
		store:         store,
		resetInterval: resetInterval,
		sweepInterval: sweepInterval,
	}
}

// Start runs the sweep loops until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	log.Printf("Sweeper started (timeout reset: %v, admission sweep: %v)", s.resetInterval, s.sweepInterval)

	reset := time.NewTicker(s.resetInterval)
	defer reset.Stop()
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper stopped")
			return
		case <-reset.C:
			s.resetTimeouts(ctx)
		case <-sweep.C:
			s.sweepIdle(ctx)
		}
	}
}

// resetTimeouts clears every domain's timeout count so degraded domains
// return to the full roster.
func (s *Sweeper) resetTimeouts(ctx context.Context) {
	if err := s.store.ResetTimeouts(ctx); err != nil {
		log.Printf("Sweeper: failed to reset timeout counters: %v", err)
	}
}

func (s *Sweeper) sweepIdle(ctx context.Context) {
	n, err := s.store.Sweep(ctx)
	if err != nil {
		log.Printf("Sweeper: failed to sweep counters: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Sweeper: removed %d idle domain entries", n)
	}
}
