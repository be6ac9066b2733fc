package audio

import (
	"sync"
)

// Ring is a bounded accumulator of the most recent audio samples.
// It stores the chunks it was given in arrival order and trims the oldest
// samples once the retained total would exceed capacity. Trimming may cut a
// prefix off the oldest chunk so the capacity is hit exactly.
type Ring struct {
	mu       sync.RWMutex
	chunks   [][]float32
	head     int // offset of the first retained sample inside chunks[0]
	total    int
	capacity int
}

// NewRing creates a ring that retains at most capacity samples
func NewRing(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{capacity: capacity}
}

// Append adds a copy of chunk at the tail and trims the head back to capacity.
// Returns the number of samples dropped from the head.
func (r *Ring) Append(chunk []float32) int {
	if len(chunk) == 0 {
		return 0
	}

	owned := make([]float32, len(chunk))
	copy(owned, chunk)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = append(r.chunks, owned)
	r.total += len(owned)

	return r.trim()
}

// trim drops samples from the head until total <= capacity. Caller holds the lock.
func (r *Ring) trim() int {
	dropped := 0
	for r.total > r.capacity && len(r.chunks) > 0 {
		excess := r.total - r.capacity
		oldest := len(r.chunks[0]) - r.head

		if oldest <= excess {
			// Whole chunk goes
			r.chunks[0] = nil
			r.chunks = r.chunks[1:]
			r.head = 0
			r.total -= oldest
			dropped += oldest
			continue
		}

		r.head += excess
		r.total -= excess
		dropped += excess
	}

	if len(r.chunks) == 0 {
		r.chunks = nil
		r.head = 0
	}
	return dropped
}

// Last returns a fresh copy of the most recent min(n, Len()) samples.
// The ring is not modified. Returns an empty slice for n <= 0 or an empty ring.
func (r *Ring) Last(n int) []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.total == 0 {
		return []float32{}
	}
	if n > r.total {
		n = r.total
	}

	out := make([]float32, n)
	pos := n
	for i := len(r.chunks) - 1; i >= 0 && pos > 0; i-- {
		chunk := r.chunks[i]
		if i == 0 {
			chunk = chunk[r.head:]
		}
		take := len(chunk)
		if take > pos {
			take = pos
		}
		copy(out[pos-take:pos], chunk[len(chunk)-take:])
		pos -= take
	}

	return out
}

// Len returns the number of retained samples
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Capacity returns the configured maximum number of retained samples
func (r *Ring) Capacity() int {
	return r.capacity
}

// Reset releases every retained chunk
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = nil
	r.head = 0
	r.total = 0
}
