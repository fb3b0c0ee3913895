package messaging

import "time"

// DeliveryStatus is the per-recipient state of a message. The numeric order
// matters: transitions are monotonic (SENT -> DELIVERED -> READ) and the
// repository guards updates with a status comparison so a stale writer can
// never move a record backward.
type DeliveryStatus int16

const (
	StatusSent      DeliveryStatus = 0
	StatusDelivered DeliveryStatus = 1
	StatusRead      DeliveryStatus = 2
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusSent:
		return "SENT"
	case StatusDelivered:
		return "DELIVERED"
	case StatusRead:
		return "READ"
	}
	return "UNKNOWN"
}

// CanTransition reports whether moving to the given status is a forward
// step. Equal status is allowed so redundant updates stay idempotent.
func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	return to >= s && to <= StatusRead
}

// DeliveryRecord tracks one message for one recipient. Exactly one record
// exists per active participant except the sender; it is created when the
// message is persisted and only ever moves forward. Unread counts are
// derived from these records, never stored as a separate counter.
type DeliveryRecord struct {
	MessageID     string         `db:"message_id"`
	RecipientID   string         `db:"recipient_id"`
	RecipientType PrincipalType  `db:"recipient_type"`
	Status        DeliveryStatus `db:"status"`
	DeliveredAt   *time.Time     `db:"delivered_at"`
	ReadAt        *time.Time     `db:"read_at"`
}
