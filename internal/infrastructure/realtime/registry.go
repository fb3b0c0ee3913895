package realtime

import (
	"sync"

	"supportchat/internal/metrics"
)

// Registry is the process-local connection registry: it maps authenticated
// principals to their live connections and thread ids to the set of
// connections joined to that thread's room. One registry exists per process;
// it is constructed at startup and injected into handlers, never accessed as
// a global. Cross-process fan-out is the relay's job, not the registry's.
type Registry struct {
	focused bool

	mu         sync.RWMutex
	sessions   map[string]Session            // sessionID -> session
	principals map[string]map[string]Session // principalID -> sessionID -> session
	rooms      map[string]map[string]Session // threadID -> sessionID -> session
	joined     map[string]map[string]struct{} // sessionID -> set of threadIDs
	focus      map[string]string             // sessionID -> focused threadID
}

// Option configures a Registry.
type Option func(*Registry)

// WithFocusedRooms makes JoinThread leave the previously focused room first,
// mirroring a UI that shows one open conversation at a time. Without it a
// connection may hold membership in any number of rooms.
func WithFocusedRooms() Option {
	return func(r *Registry) { r.focused = true }
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:   make(map[string]Session),
		principals: make(map[string]map[string]Session),
		rooms:      make(map[string]map[string]Session),
		joined:     make(map[string]map[string]struct{}),
		focus:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register makes the session addressable by its principal. A principal may
// hold any number of concurrent sessions (multi-tab, multi-device).
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID()] = s
	conns := r.principals[s.PrincipalID()]
	if conns == nil {
		conns = make(map[string]Session)
		r.principals[s.PrincipalID()] = conns
	}
	conns[s.ID()] = s
	r.joined[s.ID()] = make(map[string]struct{})
}

// Deregister removes the session from every room and from its principal's
// connection set. It reports whether this was the principal's last live
// session, which drives the automatic offline presence transition. No
// persisted state changes here.
func (r *Registry) Deregister(s Session) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; !ok {
		return false
	}
	delete(r.sessions, s.ID())

	for threadID := range r.joined[s.ID()] {
		r.leaveLocked(threadID, s.ID())
	}
	delete(r.joined, s.ID())
	delete(r.focus, s.ID())

	if conns, ok := r.principals[s.PrincipalID()]; ok {
		delete(conns, s.ID())
		if len(conns) == 0 {
			delete(r.principals, s.PrincipalID())
			return true
		}
	}
	return false
}

// JoinThread adds the session to the thread's room. Joining a room already
// joined is a no-op. In focused mode the previously focused room is left
// first, so a connection holds at most one focused thread. Access control
// happens before this call; the registry only manages membership.
func (r *Registry) JoinThread(threadID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; !ok {
		return
	}
	if _, already := r.joined[s.ID()][threadID]; already {
		return
	}

	if r.focused {
		if prev, ok := r.focus[s.ID()]; ok && prev != threadID {
			r.leaveLocked(prev, s.ID())
		}
		r.focus[s.ID()] = threadID
	}

	room := r.rooms[threadID]
	if room == nil {
		room = make(map[string]Session)
		r.rooms[threadID] = room
	}
	room[s.ID()] = s
	r.joined[s.ID()][threadID] = struct{}{}
}

// LeaveThread removes the session from the room; no-op if not a member.
func (r *Registry) LeaveThread(threadID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(threadID, s.ID())
	if r.focus[s.ID()] == threadID {
		delete(r.focus, s.ID())
	}
}

// Broadcast writes payload to every session in the thread's room, skipping
// the excluded principal when non-empty. Best-effort: it does not wait for
// client acknowledgment, and a room with zero live connections is a silent
// no-op. It returns the distinct principal ids that took at least one write,
// which feeds the DELIVERED transition.
func (r *Registry) Broadcast(threadID string, payload []byte, excludePrincipalID string) []string {
	r.mu.RLock()
	room := r.rooms[threadID]
	if len(room) == 0 {
		r.mu.RUnlock()
		return nil
	}
	targets := make([]Session, 0, len(room))
	for _, s := range room {
		if excludePrincipalID != "" && s.PrincipalID() == excludePrincipalID {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	reached := make(map[string]struct{}, len(targets))
	for _, s := range targets {
		if err := s.Send(payload); err == nil {
			metrics.BroadcastDeliveries.Inc()
			reached[s.PrincipalID()] = struct{}{}
		}
	}
	out := make([]string, 0, len(reached))
	for id := range reached {
		out = append(out, id)
	}
	return out
}

// Unicast delivers payload to every live session of the principal. Zero
// sessions is a silent no-op; the recipient catches up from persisted state
// on next connect.
func (r *Registry) Unicast(principalID string, payload []byte) int {
	r.mu.RLock()
	conns := make([]Session, 0, len(r.principals[principalID]))
	for _, s := range r.principals[principalID] {
		conns = append(conns, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range conns {
		if err := s.Send(payload); err == nil {
			delivered++
			metrics.BroadcastDeliveries.Inc()
		}
	}
	return delivered
}

// IsOnline reports whether the principal has at least one live session.
func (r *Registry) IsOnline(principalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.principals[principalID]) > 0
}

// RoomsOfPrincipal returns the thread ids any of the principal's sessions
// are currently joined to. Presence changes are broadcast to these rooms.
func (r *Registry) RoomsOfPrincipal(principalID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for sessionID := range r.principals[principalID] {
		for threadID := range r.joined[sessionID] {
			seen[threadID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// RoomSize returns the number of sessions joined to the thread's room.
func (r *Registry) RoomSize(threadID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[threadID])
}

func (r *Registry) leaveLocked(threadID, sessionID string) {
	room := r.rooms[threadID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, threadID)
	}
	if joined, ok := r.joined[sessionID]; ok {
		delete(joined, threadID)
	}
}
