package server

import (
	"errors"
	"sync"
)

// ErrTooManySessions is returned by Add once the session limit is reached
var ErrTooManySessions = errors.New("too many active sessions")

// member is anything the registry can track and shut down
type member interface {
	ID() string
	Shutdown()
}

// Registry tracks active connections. Add on connect, Remove on disconnect.
type Registry struct {
	mu      sync.Mutex
	members map[string]member
	max     int // 0 = unlimited
}

// NewRegistry creates a registry admitting at most max members
func NewRegistry(max int) *Registry {
	return &Registry{
		members: make(map[string]member),
		max:     max,
	}
}

// Add registers m, failing once the limit is reached
func (r *Registry) Add(m member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.members) >= r.max {
		return ErrTooManySessions
	}
	r.members[m.ID()] = m
	return nil
}

// Remove unregisters the member with the given ID
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.members, id)
	r.mu.Unlock()
}

// Count returns the number of registered members
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Full reports whether Add would currently fail
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max > 0 && len(r.members) >= r.max
}

// CloseAll asks every registered member to shut down
func (r *Registry) CloseAll() {
	r.mu.Lock()
	members := make([]member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.Unlock()

	// Shutdown may call back into Remove
	for _, m := range members {
		m.Shutdown()
	}
}
