package metrics

import (
	"sync"
	"time"
)

// Ring is a fixed-size ring buffer. Once full, each Push overwrites the
// oldest element, so memory stays bounded no matter how many samples arrive.
type Ring[T any] struct {
	mu      sync.RWMutex
	samples []T
	head    int
	count   int
	cap     int
}

// NewRing creates a ring buffer with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Ring[T]{
		samples: make([]T, capacity),
		cap:     capacity,
	}
}

// Push adds a sample to the ring buffer, overwriting the oldest if full.
func (r *Ring[T]) Push(s T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.head] = s
	r.head = (r.head + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
}

// Range visits samples newest first. Returning false stops iteration.
func (r *Ring[T]) Range(fn func(T) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := 0; i < r.count; i++ {
		idx := (r.head - 1 - i + r.cap) % r.cap
		if !fn(r.samples[idx]) {
			return
		}
	}
}

// Snapshot returns a copy of the samples, newest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.Len())
	r.Range(func(s T) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Latest returns the most recent sample.
func (r *Ring[T]) Latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.count == 0 {
		var zero T
		return zero, false
	}
	idx := (r.head - 1 + r.cap) % r.cap
	return r.samples[idx], true
}

// Len returns the number of stored samples.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return r.cap
}

// Observation is one completed dispatcher request.
type Observation struct {
	At       time.Time
	Outcome  Outcome
	Duration time.Duration
}
