package realtime

import (
	"errors"
	"testing"

	domain "supportchat/internal/pkg/messaging/domain"
)

func TestPresenceDefaultsOffline(t *testing.T) {
	p := NewPresenceCoordinator()
	if got := p.Get("nobody"); got != PresenceOffline {
		t.Fatalf("unknown principal = %q, want offline", got)
	}
}

func TestPresenceUpdateAndChange(t *testing.T) {
	p := NewPresenceCoordinator()

	changed, err := p.Update("alice", PresenceOnline)
	if err != nil || !changed {
		t.Fatalf("first update: changed=%v err=%v", changed, err)
	}
	if got := p.Get("alice"); got != PresenceOnline {
		t.Errorf("status = %q, want online", got)
	}

	// Same status again is not a change.
	changed, err = p.Update("alice", PresenceOnline)
	if err != nil || changed {
		t.Fatalf("redundant update: changed=%v err=%v", changed, err)
	}

	changed, _ = p.Update("alice", PresenceAway)
	if !changed {
		t.Error("away after online should be a change")
	}
}

func TestPresenceOfflineClearsEntry(t *testing.T) {
	p := NewPresenceCoordinator()
	_, _ = p.Update("alice", PresenceBusy)

	changed, err := p.Update("alice", PresenceOffline)
	if err != nil || !changed {
		t.Fatalf("offline transition: changed=%v err=%v", changed, err)
	}
	if got := p.Get("alice"); got != PresenceOffline {
		t.Errorf("status = %q, want offline", got)
	}

	// Offline twice is not a change.
	changed, _ = p.Update("alice", PresenceOffline)
	if changed {
		t.Error("already-offline principal should not report a change")
	}
}

func TestPresenceRejectsUnknownStatus(t *testing.T) {
	p := NewPresenceCoordinator()
	_, err := p.Update("alice", PresenceStatus("sleeping"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
