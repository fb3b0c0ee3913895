package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	queue "supportchat/internal/infrastructure/queue/port"
	"supportchat/internal/metrics"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

const TypeBackfillDeliveries = "messaging:backfill_deliveries"

type backfillPayload struct {
	ThreadID string `json:"thread_id"`
}

// Scheduler enqueues delivery backfill jobs. It satisfies
// usecase.BackfillScheduler.
type Scheduler struct {
	Queue queue.Client
}

func NewScheduler(q queue.Client) *Scheduler {
	return &Scheduler{Queue: q}
}

// ScheduleBackfill enqueues a repair pass for the thread. Jobs are
// deduplicated per thread within a short window so a burst of reads does
// not pile identical work onto the queue.
func (s *Scheduler) ScheduleBackfill(ctx context.Context, threadID string) error {
	payload, err := json.Marshal(backfillPayload{ThreadID: threadID})
	if err != nil {
		return fmt.Errorf("marshal backfill payload: %w", err)
	}
	_, err = s.Queue.Enqueue(ctx, queue.Task{Type: TypeBackfillDeliveries, Payload: payload}, queue.EnqueueOption{
		Queue:     "messaging",
		MaxRetry:  5,
		UniqueTTL: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("enqueue backfill: %w", err)
	}
	return nil
}

// RegisterBackfillTask wires the backfill handler onto the worker server.
// The repair is an idempotent INSERT of missing delivery records, so
// retries and duplicate jobs are harmless.
func RegisterBackfillTask(srv queue.Server, repo repository.MessagingRepository) {
	srv.Register(TypeBackfillDeliveries, func(ctx context.Context, t queue.Task) error {
		var p backfillPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal backfill payload: %w", err)
		}
		created, err := repo.BackfillDeliveries(ctx, p.ThreadID)
		if err != nil {
			return fmt.Errorf("backfill deliveries for thread %s: %w", p.ThreadID, err)
		}
		if created > 0 {
			metrics.DeliveryBackfills.Add(float64(created))
			log.Info().Str("thread", p.ThreadID).Int64("created", created).Msg("backfilled delivery records")
		}
		return nil
	})
}
