package protocol

import (
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
)

// Event names exchanged over the transport. The set is closed: inbound
// frames with any other name are ignored for forward compatibility.
const (
	// client -> server
	TypeJoinThread     = "join_thread"
	TypeLeaveThread    = "leave_thread"
	TypeSendMessage    = "send_message"
	TypeMarkRead       = "mark_read"
	TypePresenceUpdate = "presence_update"

	// server -> client
	TypeNewMessage      = "new_message"
	TypeThreadUpdated   = "thread_updated"
	TypeMessagesRead    = "messages_read"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypePresenceChanged = "presence_changed"
	TypeError           = "error"
)

// Inbound is the tagged union of client events. Every variant validates
// itself before any handler logic runs.
type Inbound interface {
	Validate() error
	isInbound()
}

type JoinThread struct {
	ThreadID string `json:"thread_id"`
	UserType string `json:"user_type,omitempty"`
}

type LeaveThread struct {
	ThreadID string `json:"thread_id"`
}

type SendMessage struct {
	ThreadID       string  `json:"thread_id"`
	Content        string  `json:"content"`
	MsgType        string  `json:"message_type,omitempty"`
	ReplyToID      *string `json:"reply_to_id,omitempty"`
	AuthorRole     string  `json:"author_role,omitempty"`
	AuthorName     string  `json:"author_name,omitempty"`
	AttachmentURL  *string `json:"attachment_url,omitempty"`
	AttachmentMeta *string `json:"attachment_meta,omitempty"`
}

type MarkRead struct {
	ThreadID   string   `json:"thread_id"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

type PresenceUpdate struct {
	Status string `json:"status"`
}

func (JoinThread) isInbound()     {}
func (LeaveThread) isInbound()    {}
func (SendMessage) isInbound()    {}
func (MarkRead) isInbound()       {}
func (PresenceUpdate) isInbound() {}

// Outbound payloads. Field names follow the wire contract (snake_case).

type MessagePayload struct {
	ID             string     `json:"id"`
	ThreadID       string     `json:"thread_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	MsgType        string     `json:"message_type"`
	ReplyToID      *string    `json:"reply_to_id,omitempty"`
	AttachmentURL  *string    `json:"attachment_url,omitempty"`
	AttachmentMeta *string    `json:"attachment_meta,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type NewMessage struct {
	Message MessagePayload `json:"message"`
}

type ThreadUpdated struct {
	ThreadID string         `json:"thread_id"`
	Changes  map[string]any `json:"changes"`
}

type MessagesRead struct {
	ThreadID    string    `json:"thread_id"`
	RecipientID string    `json:"recipient_id"`
	Timestamp   time.Time `json:"timestamp"`
}

type UserJoined struct {
	ThreadID    string `json:"thread_id"`
	PrincipalID string `json:"principal_id"`
}

type UserLeft struct {
	ThreadID    string `json:"thread_id"`
	PrincipalID string `json:"principal_id"`
}

type PresenceChanged struct {
	PrincipalID string `json:"principal_id"`
	Status      string `json:"status"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessageToPayload maps a domain message onto the wire shape.
func MessageToPayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ThreadID:       m.ThreadID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MsgType:        string(m.MsgType),
		ReplyToID:      m.ReplyToID,
		AttachmentURL:  m.AttachmentURL,
		AttachmentMeta: m.AttachmentMeta,
		CreatedAt:      m.CreatedAt,
		DeletedAt:      m.DeletedAt,
	}
}
