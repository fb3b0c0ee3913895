package realtime

import (
	"fmt"
	"sync"

	domain "supportchat/internal/pkg/messaging/domain"
)

// PresenceStatus is a principal's ephemeral availability state. It is never
// persisted; a restart resets everyone to offline.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// PresenceCoordinator tracks in-memory presence per principal. Callers are
// responsible for broadcasting the resulting change to interested rooms.
type PresenceCoordinator struct {
	mu       sync.RWMutex
	statuses map[string]PresenceStatus
}

func NewPresenceCoordinator() *PresenceCoordinator {
	return &PresenceCoordinator{statuses: make(map[string]PresenceStatus)}
}

// Update sets the principal's status. It returns whether the status actually
// changed so callers can skip redundant broadcasts.
func (p *PresenceCoordinator) Update(principalID string, status PresenceStatus) (changed bool, err error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: unknown presence status %q", domain.ErrValidation, status)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.statuses[principalID] == status || (status == PresenceOffline && p.statuses[principalID] == "") {
		return false, nil
	}
	if status == PresenceOffline {
		// Offline principals carry no entry at all; the zero value reads
		// back as offline and the map cannot grow without bound.
		delete(p.statuses, principalID)
		return true, nil
	}
	p.statuses[principalID] = status
	return true, nil
}

// Get returns the principal's current status; unknown principals are offline.
func (p *PresenceCoordinator) Get(principalID string) PresenceStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.statuses[principalID]; ok {
		return s
	}
	return PresenceOffline
}
