package messaging

import (
	"errors"
	"strings"
	"time"
)

// ThreadType distinguishes direct customer/admin conversations, group
// threads and support tickets.
type ThreadType string

const (
	ThreadTypeDirect  ThreadType = "direct"
	ThreadTypeGroup   ThreadType = "group"
	ThreadTypeSupport ThreadType = "support"
)

func (t ThreadType) Valid() bool {
	switch t {
	case ThreadTypeDirect, ThreadTypeGroup, ThreadTypeSupport:
		return true
	}
	return false
}

// Thread is a conversation container. ParticipantCount always equals the
// number of active participants; the repository maintains it in the same
// transaction as participant changes. Threads are soft-deactivated when the
// last active participant leaves and are never hard-deleted while messages
// reference them.
type Thread struct {
	ID                 string     `db:"id"`
	Type               ThreadType `db:"thread_type"`
	Subject            string     `db:"subject"`
	IsActive           bool       `db:"is_active"`
	ParticipantCount   int        `db:"participant_count"`
	LastMessageAt      *time.Time `db:"last_message_at"`
	LastMessagePreview *string    `db:"last_message_preview"`
	CreatedAt          time.Time  `db:"created_at"`
}

// NewThread validates and normalizes a thread before creation.
func NewThread(t Thread) (*Thread, error) {
	if !t.Type.Valid() {
		return nil, errors.New("thread type must be direct, group or support")
	}
	t.Subject = strings.TrimSpace(t.Subject)
	t.IsActive = true
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return &t, nil
}
