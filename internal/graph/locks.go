package graph

import "sync"

// IncidentLocks serializes graph mutation per incident. Bulk rebuilds
// perform delete-then-recreate and must never interleave; incremental
// updates need atomic get-or-create for the same host. Entries are kept
// for the process lifetime; the set of active incidents is small.
type IncidentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIncidentLocks creates an empty lock registry.
func NewIncidentLocks() *IncidentLocks {
	return &IncidentLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *IncidentLocks) mutex(incidentID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[incidentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[incidentID] = m
	}
	return m
}

// Lock acquires the incident's mutex.
func (l *IncidentLocks) Lock(incidentID string) {
	l.mutex(incidentID).Lock()
}

// Unlock releases the incident's mutex.
func (l *IncidentLocks) Unlock(incidentID string) {
	l.mutex(incidentID).Unlock()
}
