package repository

import (
	"context"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
)

// MessagingRepository is the persistence gateway for the messaging core:
// threads, participants, messages and per-recipient delivery records. It is
// the single source of truth for durable state; the realtime layer keeps no
// durable state of its own.
//
// Write semantics the core relies on:
//   - SaveMessage assigns the id and creation timestamp at write time and
//     updates the thread's last-message cache in the same transaction.
//   - CreateDeliveryRecords derives the recipient set (active participants
//     except the sender) inside the store, so a racing leave cannot produce
//     a record for an inactive participant.
//   - Delivery status updates are guarded to be monotonic; calling them
//     redundantly is a no-op, not an error.
type MessagingRepository interface {
	CreateThread(ctx context.Context, t domain.Thread, participants []domain.Participant) (*domain.Thread, error)
	GetThread(ctx context.Context, threadID string) (*domain.Thread, error)
	ListThreadsForPrincipal(ctx context.Context, principalID string, limit, offset int) ([]domain.Thread, error)

	IsActiveParticipant(ctx context.Context, threadID, principalID string) (bool, error)
	ListActiveParticipants(ctx context.Context, threadID string) ([]domain.Participant, error)
	// DeactivateParticipant marks the membership left and returns the number
	// of active participants remaining; the thread is deactivated in the
	// same transaction when that number reaches zero.
	DeactivateParticipant(ctx context.Context, threadID, principalID string, leftAt time.Time) (remaining int, err error)

	SaveMessage(ctx context.Context, m domain.Message) (*domain.Message, error)
	ListMessages(ctx context.Context, threadID string, limit, offset int) ([]domain.Message, error)
	// SoftDeleteMessage tombstones the content; only the sender or an admin
	// may delete. Returns the owning thread id for fan-out.
	SoftDeleteMessage(ctx context.Context, messageID, requesterID string, isAdmin bool) (threadID string, err error)

	CreateDeliveryRecords(ctx context.Context, messageID, threadID, senderID string) (created int64, err error)
	MarkDelivered(ctx context.Context, messageID string, recipientIDs []string, at time.Time) error
	MarkRead(ctx context.Context, threadID, principalID string, messageIDs []string, at time.Time) (updated int64, err error)
	UnreadCount(ctx context.Context, threadID, principalID string) (int, error)
	// HasDeliveryGaps reports whether any message in the thread is missing a
	// delivery record for a participant whose membership covers it. Reads use
	// it to schedule repair only when there is something to repair.
	HasDeliveryGaps(ctx context.Context, threadID string) (bool, error)
	// BackfillDeliveries creates the delivery records HasDeliveryGaps
	// detects, repairing a partial failure where the message write committed
	// but the receipt writes did not. Membership is time-bounded: a late
	// joiner gets no records for messages sent before they joined.
	BackfillDeliveries(ctx context.Context, threadID string) (created int64, err error)
}
