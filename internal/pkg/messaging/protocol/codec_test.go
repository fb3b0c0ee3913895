package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	domain "supportchat/internal/pkg/messaging/domain"
)

func TestDecodeSendMessage(t *testing.T) {
	data := []byte(`{"type":"send_message","payload":{"thread_id":"t1","content":"hello"}}`)
	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg, ok := ev.(*SendMessage)
	if !ok {
		t.Fatalf("expected *SendMessage, got %T", ev)
	}
	if msg.ThreadID != "t1" || msg.Content != "hello" {
		t.Errorf("unexpected fields: %+v", msg)
	}
}

func TestDecodeUnknownTypeIgnored(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"typing_indicator","payload":{"thread_id":"t1"}}`))
	if err != nil {
		t.Fatalf("unknown type should not error, got %v", err)
	}
	if ev != nil {
		t.Fatalf("unknown type should yield nil event, got %T", ev)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeEmptyContentRejected(t *testing.T) {
	cases := []string{
		`{"type":"send_message","payload":{"thread_id":"t1","content":""}}`,
		`{"type":"send_message","payload":{"thread_id":"t1","content":"   \n\t"}}`,
	}
	for _, c := range cases {
		if _, err := Decode([]byte(c)); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("empty content should be rejected, got %v for %s", err, c)
		}
	}
}

func TestDecodeAttachmentOnlyAllowed(t *testing.T) {
	data := []byte(`{"type":"send_message","payload":{"thread_id":"t1","content":"","attachment_url":"https://cdn.example/f.png"}}`)
	if _, err := Decode(data); err != nil {
		t.Fatalf("attachment without content should be valid, got %v", err)
	}
}

func TestDecodeOversizedContent(t *testing.T) {
	big := strings.Repeat("a", domain.MaxContentBytes+1)
	frame := `{"type":"send_message","payload":{"thread_id":"t1","content":"` + big + `"}}`
	if _, err := Decode([]byte(frame)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("oversized content should be rejected, got %v", err)
	}
}

func TestDecodeJoinRequiresThreadID(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"join_thread","payload":{}}`)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeMarkReadBatchLimit(t *testing.T) {
	ids := make([]string, maxMarkReadIDs+1)
	for i := range ids {
		ids[i] = "m"
	}
	payload, _ := json.Marshal(MarkRead{ThreadID: "t1", MessageIDs: ids})
	frame, _ := json.Marshal(Envelope{Type: TypeMarkRead, Payload: payload})
	if _, err := Decode(frame); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("oversized mark_read batch should be rejected, got %v", err)
	}
}

func TestDecodePresenceStatus(t *testing.T) {
	for _, status := range []string{"online", "away", "busy", "offline"} {
		ev, err := Decode([]byte(`{"type":"presence_update","payload":{"status":"` + status + `"}}`))
		if err != nil {
			t.Fatalf("status %q should be valid: %v", status, err)
		}
		if ev.(*PresenceUpdate).Status != status {
			t.Errorf("status mismatch: %v", ev)
		}
	}
	if _, err := Decode([]byte(`{"type":"presence_update","payload":{"status":"sleeping"}}`)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown status should be rejected, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	payload := MessagesRead{ThreadID: "t1", RecipientID: "u1"}
	raw, err := Encode(TypeMessagesRead, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeMessagesRead {
		t.Errorf("type = %q, want %q", env.Type, TypeMessagesRead)
	}
	var got MessagesRead
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.ThreadID != "t1" || got.RecipientID != "u1" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestErrorFrame(t *testing.T) {
	raw := ErrorFrame("forbidden", "not a participant")
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeError {
		t.Errorf("type = %q, want %q", env.Type, TypeError)
	}
	var p ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Code != "forbidden" {
		t.Errorf("code = %q", p.Code)
	}
}
