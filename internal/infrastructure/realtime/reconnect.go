package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
)

// SessionState models the lifecycle of one client-side connection attempt.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// ErrReconnectFailed is returned once the attempt budget is exhausted. The
// FAILED state is terminal: it takes an explicit Reset to try again.
var ErrReconnectFailed = errors.New("realtime: reconnect attempts exhausted")

// Transport is a live client-side connection produced by a Dialer.
type Transport interface {
	Join(threadID string) error
	Send(payload []byte) error
	Close() error
}

// Dialer establishes transports; implementations wrap the actual socket
// library so the state machine and its tests stay independent of it.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// ReconnectPolicy bounds the retry schedule: exponential backoff from
// BaseDelay, doubling per attempt, capped at MaxDelay, at most MaxAttempts
// tries before giving up.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy matches the admin console client: 2s, 4s, 8s, 16s,
// 30s-cap across five attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 5}
}

// Delay returns the backoff before the given 1-based attempt.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// SessionManager restores client-visible state across transport
// interruptions. Thread joins issued while disconnected queue FIFO and are
// replayed on the next session, after the previously focused thread is
// rejoined. Sends never queue: a send while disconnected blocks until the
// session is CONNECTED or the timeout elapses, then fails. Message
// duplication across the handshake window is possible; consumers dedupe by
// message id.
type SessionManager struct {
	dialer Dialer
	policy ReconnectPolicy

	// sleep is injectable so the backoff schedule is testable without
	// waiting on real timers.
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     SessionState
	transport Transport
	focused   string
	pending   []string      // joins requested while not connected, FIFO
	connected chan struct{} // closed while CONNECTED
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSleep overrides the backoff wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(m *SessionManager) { m.sleep = fn }
}

func NewSessionManager(d Dialer, p ReconnectPolicy, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		dialer:    d,
		policy:    p,
		sleep:     sleepCtx,
		state:     StateDisconnected,
		connected: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials immediately and, on failure, runs the backoff schedule.
// From FAILED it returns ErrReconnectFailed until Reset is called.
func (m *SessionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateFailed {
		m.mu.Unlock()
		return ErrReconnectFailed
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	if err := m.tryDial(ctx); err == nil {
		return nil
	}
	return m.retryLoop(ctx)
}

// OnDrop transitions to CONNECTING after a transport loss and retries with
// backoff. Rooms joined on the dropped session carry over to the rejoin
// queue, focused thread first.
func (m *SessionManager) OnDrop(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateFailed {
		m.mu.Unlock()
		return ErrReconnectFailed
	}
	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}
	if m.state == StateConnected {
		m.connected = make(chan struct{})
	}
	m.state = StateConnecting
	m.mu.Unlock()

	return m.retryLoop(ctx)
}

// Reset leaves the terminal FAILED state so a manual retry can start over.
func (m *SessionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFailed {
		m.state = StateDisconnected
	}
}

// Join requests membership in the thread's room. Connected sessions join
// immediately and the thread becomes the focused one; otherwise the request
// queues FIFO for replay after reconnect.
func (m *SessionManager) Join(threadID string) error {
	m.mu.Lock()
	if m.state != StateConnected || m.transport == nil {
		for _, id := range m.pending {
			if id == threadID {
				m.mu.Unlock()
				return nil
			}
		}
		m.pending = append(m.pending, threadID)
		m.mu.Unlock()
		return nil
	}
	t := m.transport
	m.mu.Unlock()

	if err := t.Join(threadID); err != nil {
		return err
	}
	m.mu.Lock()
	m.focused = threadID
	m.mu.Unlock()
	return nil
}

// Send writes payload on the live transport. While not connected it blocks
// until the session reaches CONNECTED or the timeout elapses; it never
// queues the payload, so a caller is never left waiting on an unbounded
// buffer. Timed-out sends fail with the connection-timeout error.
func (m *SessionManager) Send(ctx context.Context, payload []byte, timeout time.Duration) error {
	m.mu.Lock()
	t := m.transport
	ready := m.connected
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || t == nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ready:
			m.mu.Lock()
			t = m.transport
			m.mu.Unlock()
			if t == nil {
				return domain.ErrConnectionTimeout
			}
		case <-timer.C:
			return domain.ErrConnectionTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return t.Send(payload)
}

func (m *SessionManager) retryLoop(ctx context.Context) error {
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		if err := m.sleep(ctx, m.policy.Delay(attempt)); err != nil {
			m.mu.Lock()
			m.state = StateDisconnected
			m.mu.Unlock()
			return err
		}
		if err := m.tryDial(ctx); err == nil {
			return nil
		}
	}
	m.mu.Lock()
	m.state = StateFailed
	m.mu.Unlock()
	return ErrReconnectFailed
}

// tryDial attempts one handshake and, on success, replays the focused
// thread and then every queued join in request order.
func (m *SessionManager) tryDial(ctx context.Context) error {
	t, err := m.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	replay := make([]string, 0, len(m.pending)+1)
	if m.focused != "" {
		replay = append(replay, m.focused)
	}
	for _, id := range m.pending {
		if id != m.focused {
			replay = append(replay, id)
		}
	}
	m.pending = nil
	m.mu.Unlock()

	for _, threadID := range replay {
		if err := t.Join(threadID); err != nil {
			_ = t.Close()
			m.mu.Lock()
			m.pending = replay
			m.mu.Unlock()
			return err
		}
	}

	m.mu.Lock()
	m.transport = t
	m.state = StateConnected
	if len(replay) > 0 {
		m.focused = replay[len(replay)-1]
	}
	// A concurrent dial may have already signalled; closing twice panics.
	select {
	case <-m.connected:
	default:
		close(m.connected)
	}
	m.mu.Unlock()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
