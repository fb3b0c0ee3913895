package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	queue "supportchat/internal/infrastructure/queue/port"
	domain "supportchat/internal/pkg/messaging/domain"
)

type fakeQueueClient struct {
	tasks []queue.Task
	opts  []queue.EnqueueOption
	err   error
}

func (f *fakeQueueClient) Enqueue(ctx context.Context, t queue.Task, opts ...queue.EnqueueOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tasks = append(f.tasks, t)
	f.opts = append(f.opts, opts...)
	return "job-1", nil
}

func (f *fakeQueueClient) Close() error { return nil }

type fakeQueueServer struct {
	handlers map[string]queue.Handler
}

func (f *fakeQueueServer) Register(taskType string, h queue.Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string]queue.Handler)
	}
	f.handlers[taskType] = h
}
func (f *fakeQueueServer) Run(ctx context.Context) error  { return nil }
func (f *fakeQueueServer) Stop(ctx context.Context) error { return nil }

type fakeBackfillRepo struct {
	threads []string
	created int64
	err     error
}

func (f *fakeBackfillRepo) BackfillDeliveries(ctx context.Context, threadID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.threads = append(f.threads, threadID)
	return f.created, nil
}

// The remaining repository methods are unused by the backfill handler.
func (f *fakeBackfillRepo) CreateThread(context.Context, domain.Thread, []domain.Participant) (*domain.Thread, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) GetThread(context.Context, string) (*domain.Thread, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) ListThreadsForPrincipal(context.Context, string, int, int) ([]domain.Thread, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) IsActiveParticipant(context.Context, string, string) (bool, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) ListActiveParticipants(context.Context, string) ([]domain.Participant, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) DeactivateParticipant(context.Context, string, string, time.Time) (int, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) SaveMessage(context.Context, domain.Message) (*domain.Message, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) ListMessages(context.Context, string, int, int) ([]domain.Message, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) SoftDeleteMessage(context.Context, string, string, bool) (string, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) CreateDeliveryRecords(context.Context, string, string, string) (int64, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) MarkDelivered(context.Context, string, []string, time.Time) error {
	panic("not used")
}
func (f *fakeBackfillRepo) MarkRead(context.Context, string, string, []string, time.Time) (int64, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) UnreadCount(context.Context, string, string) (int, error) {
	panic("not used")
}
func (f *fakeBackfillRepo) HasDeliveryGaps(context.Context, string) (bool, error) {
	panic("not used")
}

func TestSchedulerEnqueuesUniqueJob(t *testing.T) {
	client := &fakeQueueClient{}
	s := NewScheduler(client)

	if err := s.ScheduleBackfill(context.Background(), "t1"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(client.tasks) != 1 || client.tasks[0].Type != TypeBackfillDeliveries {
		t.Fatalf("tasks = %+v", client.tasks)
	}
	var p backfillPayload
	if err := json.Unmarshal(client.tasks[0].Payload, &p); err != nil || p.ThreadID != "t1" {
		t.Fatalf("payload = %s (%v)", client.tasks[0].Payload, err)
	}
	if len(client.opts) != 1 || client.opts[0].Queue != "messaging" || client.opts[0].UniqueTTL == 0 {
		t.Errorf("enqueue options = %+v", client.opts)
	}
}

func TestSchedulerPropagatesEnqueueError(t *testing.T) {
	client := &fakeQueueClient{err: errors.New("broker down")}
	if err := NewScheduler(client).ScheduleBackfill(context.Background(), "t1"); err == nil {
		t.Fatal("expected enqueue error")
	}
}

func TestBackfillHandlerRepairsThread(t *testing.T) {
	srv := &fakeQueueServer{}
	repo := &fakeBackfillRepo{created: 3}
	RegisterBackfillTask(srv, repo)

	h, ok := srv.handlers[TypeBackfillDeliveries]
	if !ok {
		t.Fatal("handler not registered")
	}

	payload, _ := json.Marshal(backfillPayload{ThreadID: "t1"})
	if err := h(context.Background(), queue.Task{Type: TypeBackfillDeliveries, Payload: payload}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(repo.threads) != 1 || repo.threads[0] != "t1" {
		t.Errorf("repaired threads = %v", repo.threads)
	}
}

func TestBackfillHandlerRetriesOnRepoError(t *testing.T) {
	srv := &fakeQueueServer{}
	repo := &fakeBackfillRepo{err: errors.New("db down")}
	RegisterBackfillTask(srv, repo)

	payload, _ := json.Marshal(backfillPayload{ThreadID: "t1"})
	err := srv.handlers[TypeBackfillDeliveries](context.Background(), queue.Task{Payload: payload})
	if err == nil {
		t.Fatal("handler must return the error so the job retries")
	}
}

func TestBackfillHandlerRejectsMalformedPayload(t *testing.T) {
	srv := &fakeQueueServer{}
	RegisterBackfillTask(srv, &fakeBackfillRepo{})

	err := srv.handlers[TypeBackfillDeliveries](context.Background(), queue.Task{Payload: []byte("{")})
	if err == nil {
		t.Fatal("malformed payload must error")
	}
}
