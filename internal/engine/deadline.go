package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithDeadline runs fn with a context bounded by d and returns as soon as
// either fn finishes or the deadline passes, whichever comes first.
// A deadline hit is reported as ErrDeadlineExceeded; cancellation of the
// parent context is reported as the parent's error.
func WithDeadline[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	dctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(dctx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
			return o.val, fmt.Errorf("%w after %s", ErrDeadlineExceeded, d)
		}
		return o.val, o.err
	case <-dctx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", ErrDeadlineExceeded, d)
	}
}
