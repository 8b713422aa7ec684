package db

import "errors"

// Domain-level database error sentinels.
var (
	ErrDomainNotFound    = errors.New("domain not found")
	ErrDuplicateHostname = errors.New("hostname already exists")
	ErrDuplicateResult   = errors.New("result already recorded for this run")
)
