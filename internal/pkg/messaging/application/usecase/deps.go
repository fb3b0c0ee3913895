package usecase

import (
	"context"

	domain "supportchat/internal/pkg/messaging/domain"
)

// BackfillScheduler enqueues a delivery-record backfill for a thread. The
// queue-backed implementation lives in the task package; use cases depend
// on this interface so they stay testable without a broker.
type BackfillScheduler interface {
	ScheduleBackfill(ctx context.Context, threadID string) error
}

// UnreadInvalidator drops cached unread-count projections after a write
// that changes them. Cache failures are non-critical and never propagate.
type UnreadInvalidator interface {
	Invalidate(ctx context.Context, threadID string, recipients []domain.Participant)
}
