package protocol

import (
	"encoding/json"
	"fmt"

	domain "supportchat/internal/pkg/messaging/domain"
)

// Envelope is the outer frame for every event in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// maxMarkReadIDs bounds a single mark_read batch; larger sets should go
// through the whole-thread form (empty message_ids).
const maxMarkReadIDs = 100

// Decode parses an inbound frame and validates its payload. It returns
// (nil, nil) for unknown event names, which callers must skip: unknown
// types are forward compatibility, not errors. All validation failures wrap
// domain.ErrValidation.
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", domain.ErrValidation)
	}

	var ev Inbound
	switch env.Type {
	case TypeJoinThread:
		ev = &JoinThread{}
	case TypeLeaveThread:
		ev = &LeaveThread{}
	case TypeSendMessage:
		ev = &SendMessage{}
	case TypeMarkRead:
		ev = &MarkRead{}
	case TypePresenceUpdate:
		ev = &PresenceUpdate{}
	default:
		return nil, nil
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, ev); err != nil {
			return nil, fmt.Errorf("%w: malformed %s payload", domain.ErrValidation, env.Type)
		}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode wraps a payload in an envelope and marshals it.
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// MustEncode is Encode for payload types that cannot fail to marshal.
func MustEncode(eventType string, payload any) []byte {
	b, err := Encode(eventType, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// ErrorFrame builds the error event sent back to the originating
// connection only.
func ErrorFrame(code, message string) []byte {
	return MustEncode(TypeError, ErrorPayload{Code: code, Message: message})
}

func (e *JoinThread) Validate() error {
	if e.ThreadID == "" {
		return fmt.Errorf("%w: join_thread requires thread_id", domain.ErrValidation)
	}
	return nil
}

func (e *LeaveThread) Validate() error {
	if e.ThreadID == "" {
		return fmt.Errorf("%w: leave_thread requires thread_id", domain.ErrValidation)
	}
	return nil
}

func (e *SendMessage) Validate() error {
	if e.ThreadID == "" {
		return fmt.Errorf("%w: send_message requires thread_id", domain.ErrValidation)
	}
	if e.MsgType != "" && !domain.MessageType(e.MsgType).Valid() {
		return fmt.Errorf("%w: unknown message_type %q", domain.ErrValidation, e.MsgType)
	}
	if len(e.Content) > domain.MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", domain.ErrValidation, domain.MaxContentBytes)
	}
	// Empty content with no attachment is rejected here, before any side
	// effect, so nothing is persisted and nothing is broadcast.
	if trimmedEmpty(e.Content) && e.AttachmentURL == nil && domain.MessageType(e.MsgType) != domain.MessageTypeSystem {
		return fmt.Errorf("%w: send_message requires content or attachment", domain.ErrValidation)
	}
	return nil
}

func (e *MarkRead) Validate() error {
	if e.ThreadID == "" {
		return fmt.Errorf("%w: mark_read requires thread_id", domain.ErrValidation)
	}
	if len(e.MessageIDs) > maxMarkReadIDs {
		return fmt.Errorf("%w: mark_read accepts at most %d message_ids", domain.ErrValidation, maxMarkReadIDs)
	}
	for _, id := range e.MessageIDs {
		if id == "" {
			return fmt.Errorf("%w: mark_read message_ids must be non-empty", domain.ErrValidation)
		}
	}
	return nil
}

func (e *PresenceUpdate) Validate() error {
	switch e.Status {
	case "online", "away", "busy", "offline":
		return nil
	}
	return fmt.Errorf("%w: unknown presence status %q", domain.ErrValidation, e.Status)
}

func trimmedEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
