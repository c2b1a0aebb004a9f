package sink

import (
	"fmt"
	"sync"

	"github.com/hansrobothans/logfan"
)

// DefaultRingCapacity is the ring size when the configuration names none.
const DefaultRingCapacity = 1000

// Ring keeps the newest records in memory for inspection while the
// listener runs. Unlike the other sinks it is read concurrently through
// the control surface, so every method locks.
type Ring struct {
	mu   sync.RWMutex
	recs []logfan.Record
	cap  int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{cap: capacity}
}

func (r *Ring) Name() string { return "ring" }

// Write appends a copy of rec, evicting the oldest entries past capacity.
func (r *Ring) Write(rec *logfan.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, *rec)
	if len(r.recs) > r.cap {
		r.recs = r.recs[len(r.recs)-r.cap:]
	}
	return nil
}

// Snapshot returns a copy, oldest first. Mutating the result does not
// touch the ring.
func (r *Ring) Snapshot() []logfan.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]logfan.Record, len(r.recs))
	copy(out, r.recs)
	return out
}

// Clear drops every buffered record. Clearing an empty ring is fine.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = nil
}

// Resize changes the capacity. Shrinking keeps the newest records.
func (r *Ring) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("ring capacity must be positive, got %d", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cap = n
	if len(r.recs) > n {
		r.recs = r.recs[len(r.recs)-n:]
	}
	return nil
}

// Len reports how many records are buffered.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recs)
}

// Cap reports the configured capacity.
func (r *Ring) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cap
}

func (r *Ring) Flush() error { return nil }
func (r *Ring) Close() error { return nil }
