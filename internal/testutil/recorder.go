package testutil

import "sync"

// Recorder collects every value passed to Log.
//
// Recorder[rules.Change] satisfies rules.Logger without this package
// importing rules.
type Recorder[T any] struct {
	mu      sync.Mutex
	entries []T
}

// Log appends entry.
func (r *Recorder[T]) Log(entry T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of everything logged so far.
func (r *Recorder[T]) Entries() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of logged entries.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reset clears the recorder for reuse.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
