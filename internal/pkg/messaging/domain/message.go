package messaging

import (
	"errors"
	"strings"
	"time"
)

// MessageType represents the kind of message content.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Tombstone replaces the content of a soft-deleted message. A tombstoned
// message is never un-deleted and never physically removed.
const Tombstone = "[deleted]"

// MaxContentBytes caps message content size at the validation boundary.
const MaxContentBytes = 64 << 10

// Message is an immutable log entry in a thread; only the soft-delete
// tombstone and the edit timestamp ever change after creation. ReplyToID is
// a single back-pointer forming a reply chain, not a tree.
type Message struct {
	ID             string      `db:"id"`
	ThreadID       string      `db:"thread_id"`
	SenderID       string      `db:"sender_id"`
	Content        string      `db:"content"`
	MsgType        MessageType `db:"msg_type"`
	ReplyToID      *string     `db:"reply_to_id"`
	AttachmentURL  *string     `db:"attachment_url"`
	AttachmentMeta *string     `db:"attachment_meta"` // JSON string; nil if absent
	EditedAt       *time.Time  `db:"edited_at"`
	DeletedAt      *time.Time  `db:"deleted_at"`
	CreatedAt      time.Time   `db:"created_at"`
}

// NewMessage validates and normalizes a message before persistence.
func NewMessage(m Message) (*Message, error) {
	if m.ThreadID == "" || m.SenderID == "" {
		return nil, errors.New("thread_id and sender_id are required")
	}
	if m.MsgType == "" {
		m.MsgType = MessageTypeText
	}
	if !m.MsgType.Valid() {
		return nil, errors.New("unknown message type")
	}

	m.Content = strings.TrimSpace(m.Content)
	if len(m.Content) > MaxContentBytes {
		return nil, errors.New("content exceeds maximum size")
	}
	if m.MsgType != MessageTypeSystem && m.Content == "" && m.AttachmentURL == nil {
		return nil, errors.New("message must contain either content or attachment")
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return &m, nil
}

// Preview returns the cached last-message text stored on the thread row.
func (m Message) Preview() string {
	const max = 160
	if len(m.Content) <= max {
		return m.Content
	}
	return m.Content[:max]
}
