package engine

import "errors"

// Run-level error sentinels. Transport adapters map these to status codes.
var (
	ErrTooManyRuns      = errors.New("too many concurrent runs for this domain")
	ErrNoPhrases        = errors.New("no eligible phrases for this domain")
	ErrTooManyTasks     = errors.New("task count exceeds the per-run ceiling")
	ErrRunCancelled     = errors.New("run cancelled")
	ErrRunAbandoned     = errors.New("run consumer went away")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)
