// Package registry keeps the in-memory set of active charging sessions.
// The coordinator goroutine is the single writer; reads from other
// goroutines go through Snapshot, which returns clones.
package registry

import (
	"sort"
	"sync"

	"github.com/electra-charge/ems/internal/domain"
)

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
	}
}

// Get returns the live session record. Only the coordinator may mutate the
// returned pointer.
func (r *Registry) Get(sessionID string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *Registry) Add(s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID] = s
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ConnectorOccupied reports whether an active session already holds the
// (charger, connector) pair.
func (r *Registry) ConnectorOccupied(chargerID string, connectorID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.ChargerID == chargerID && s.ConnectorID == connectorID {
			return true
		}
	}
	return false
}

// ActiveOnCharger counts the active sessions sharing a charger's budget.
func (r *Registry) ActiveOnCharger(chargerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.ChargerID == chargerID {
			n++
		}
	}
	return n
}

// All returns the live session records ordered by session id. The ordering
// makes the allocator's rounding correction deterministic.
func (r *Registry) All() []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Snapshot returns cloned sessions for read paths outside the coordinator.
func (r *Registry) Snapshot() []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// TotalConsumed sums the most recent telemetry of every active session.
func (r *Registry) TotalConsumed() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0.0
	for _, s := range r.sessions {
		total += s.ConsumedPower
	}
	return total
}
