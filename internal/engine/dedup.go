package engine

import "sync"

// TaskKey identifies one model evaluation of a phrase within a run.
type TaskKey struct {
	Phrase  string
	Model   string
	Keyword string
}

// Deduplicator is a run-scoped, additive set of dispatched task keys.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[TaskKey]struct{}
}

// NewDeduplicator creates an empty set.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[TaskKey]struct{})}
}

// Check reports whether key has already been marked.
func (d *Deduplicator) Check(key TaskKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[key]
	return ok
}

// Mark records key as dispatched.
func (d *Deduplicator) Mark(key TaskKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = struct{}{}
}

// Claim marks key and returns true if it was not already present.
// Check and mark happen under one lock so two workers can never both claim a key.
func (d *Deduplicator) Claim(key TaskKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of marked keys.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
