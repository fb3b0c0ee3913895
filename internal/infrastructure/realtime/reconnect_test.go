package realtime

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
)

type fakeTransport struct {
	joins    []string
	sent     [][]byte
	failJoin bool
	closed   bool
}

func (t *fakeTransport) Join(threadID string) error {
	if t.failJoin {
		return errors.New("join failed")
	}
	t.joins = append(t.joins, threadID)
	return nil
}

func (t *fakeTransport) Send(p []byte) error {
	t.sent = append(t.sent, p)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

// fakeDialer fails the first failures dials, then hands out transports.
type fakeDialer struct {
	mu         sync.Mutex
	failures   int
	dials      int
	transports []*fakeTransport
}

func (d *fakeDialer) Dial(ctx context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("dial refused")
	}
	t := &fakeTransport{}
	d.transports = append(d.transports, t)
	return t, nil
}

func noSleep(recorded *[]time.Duration) SessionOption {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		if recorded != nil {
			*recorded = append(*recorded, d)
		}
		return nil
	})
}

func TestPolicyDelaySchedule(t *testing.T) {
	p := DefaultReconnectPolicy()
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second, // stays capped
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestConnectImmediateSuccess(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v, want CONNECTED", m.State())
	}
	if d.dials != 1 {
		t.Errorf("dials = %d, want 1", d.dials)
	}
}

func TestConnectRetriesWithBackoff(t *testing.T) {
	var delays []time.Duration
	d := &fakeDialer{failures: 3}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(&delays))

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	// One immediate dial plus two backoff retries failed, the third succeeded.
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if !reflect.DeepEqual(delays, want) {
		t.Errorf("backoff delays = %v, want %v", delays, want)
	}
	if d.dials != 4 {
		t.Errorf("dials = %d, want 4", d.dials)
	}
}

func TestConnectFailsAfterExhaustion(t *testing.T) {
	d := &fakeDialer{failures: 1 << 30}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	if err := m.Connect(context.Background()); !errors.Is(err, ErrReconnectFailed) {
		t.Fatalf("expected ErrReconnectFailed, got %v", err)
	}
	if m.State() != StateFailed {
		t.Fatalf("state = %v, want FAILED", m.State())
	}
	// One immediate attempt plus the five scheduled retries.
	if d.dials != 6 {
		t.Errorf("dials = %d, want 6", d.dials)
	}

	// FAILED is terminal until Reset.
	dials := d.dials
	if err := m.Connect(context.Background()); !errors.Is(err, ErrReconnectFailed) {
		t.Fatalf("connect from FAILED should fail fast, got %v", err)
	}
	if d.dials != dials {
		t.Errorf("connect from FAILED must not dial")
	}

	m.Reset()
	if m.State() != StateDisconnected {
		t.Fatalf("state after reset = %v, want DISCONNECTED", m.State())
	}
	d.failures = 0
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect after reset: %v", err)
	}
}

func TestConcurrentConnectDoesNotPanic(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Connect(context.Background()); err != nil {
				t.Errorf("connect: %v", err)
			}
		}()
	}
	wg.Wait()

	if m.State() != StateConnected {
		t.Fatalf("state = %v, want CONNECTED", m.State())
	}
	if err := m.Send(context.Background(), []byte("hi"), time.Second); err != nil {
		t.Fatalf("send after racing connects: %v", err)
	}
}

func TestJoinsQueueAndReplayFIFO(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	// Queued while disconnected; duplicates collapse.
	_ = m.Join("thread-a")
	_ = m.Join("thread-b")
	_ = m.Join("thread-a")

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	got := d.transports[0].joins
	want := []string{"thread-a", "thread-b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("replayed joins = %v, want %v", got, want)
	}
}

func TestFocusedThreadReplayedFirstAfterDrop(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = m.Join("thread-a") // live join, becomes focused

	if err := m.OnDrop(context.Background()); err != nil {
		t.Fatalf("ondrop: %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %v, want CONNECTED", m.State())
	}
	second := d.transports[1]
	if !reflect.DeepEqual(second.joins, []string{"thread-a"}) {
		t.Errorf("focused thread not rejoined: %v", second.joins)
	}
}

func TestSendOnLiveTransport(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.Send(context.Background(), []byte("hi"), time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(d.transports[0].sent) != 1 {
		t.Errorf("transport should have one payload")
	}
}

func TestSendTimesOutWhileDisconnected(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	err := m.Send(context.Background(), []byte("hi"), 10*time.Millisecond)
	if !errors.Is(err, domain.ErrConnectionTimeout) {
		t.Fatalf("expected connection timeout, got %v", err)
	}
}

func TestSendUnblocksOnReconnect(t *testing.T) {
	d := &fakeDialer{}
	m := NewSessionManager(d, DefaultReconnectPolicy(), noSleep(nil))

	done := make(chan error, 1)
	go func() {
		done <- m.Send(context.Background(), []byte("hi"), 2*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send after reconnect: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("send did not unblock after reconnect")
	}
	if len(d.transports[0].sent) != 1 {
		t.Errorf("payload should land on the new transport")
	}
}
