package usecase

import (
	"context"
	"errors"
	"testing"

	domain "supportchat/internal/pkg/messaging/domain"
)

func seedThread(t *testing.T, repo *fakeRepo, principals ...string) *domain.Thread {
	t.Helper()
	in := CreateThreadInput{
		Type:        domain.ThreadTypeSupport,
		Subject:     "order inquiry",
		CreatorID:   principals[0],
		CreatorType: domain.PrincipalAdmin,
	}
	for _, p := range principals[1:] {
		in.Participants = append(in.Participants, CreateThreadParticipant{
			PrincipalID:   p,
			PrincipalType: domain.PrincipalCustomer,
		})
	}
	thread, err := NewCreateThreadUseCase(repo).Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("seed thread: %v", err)
	}
	return thread
}

func TestSendMessageCreatesDeliveryRecords(t *testing.T) {
	repo := newFakeRepo()
	thread := seedThread(t, repo, "agent", "cust1", "cust2")

	uc := NewSendMessageUseCase(repo, nil, nil)
	out, err := uc.Execute(context.Background(), SendMessageInput{
		ThreadID: thread.ID,
		SenderID: "agent",
		Content:  "how can I help?",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Message.ID == "" {
		t.Error("message should get a server-assigned id")
	}
	if len(out.Recipients) != 2 {
		t.Fatalf("recipients = %d, want 2", len(out.Recipients))
	}

	recs := repo.deliveries[out.Message.ID]
	if len(recs) != 2 {
		t.Fatalf("delivery records = %d, want 2", len(recs))
	}
	if _, ok := recs["agent"]; ok {
		t.Error("sender must not get a delivery record")
	}
	for id, r := range recs {
		if r.Status != domain.StatusSent {
			t.Errorf("record for %s starts at %v, want SENT", id, r.Status)
		}
	}
}

func TestSendMessageDeniedForNonParticipant(t *testing.T) {
	repo := newFakeRepo()
	thread := seedThread(t, repo, "agent", "cust1")

	uc := NewSendMessageUseCase(repo, nil, nil)
	_, err := uc.Execute(context.Background(), SendMessageInput{
		ThreadID: thread.ID,
		SenderID: "stranger",
		Content:  "hi",
	})
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if len(repo.messages[thread.ID]) != 0 {
		t.Error("denied send must not persist anything")
	}
}

func TestSendMessageValidationBeforeSideEffects(t *testing.T) {
	repo := newFakeRepo()
	thread := seedThread(t, repo, "agent", "cust1")

	uc := NewSendMessageUseCase(repo, nil, nil)
	_, err := uc.Execute(context.Background(), SendMessageInput{
		ThreadID: thread.ID,
		SenderID: "agent",
		Content:  "   ",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.messages[thread.ID]) != 0 {
		t.Error("invalid send must not persist anything")
	}
}

func TestSendMessageSurvivesDeliveryFailure(t *testing.T) {
	repo := newFakeRepo()
	thread := seedThread(t, repo, "agent", "cust1")
	repo.failDeliveries = true
	sched := &fakeScheduler{}

	uc := NewSendMessageUseCase(repo, sched, nil)
	_, err := uc.Execute(context.Background(), SendMessageInput{
		ThreadID: thread.ID,
		SenderID: "agent",
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("message write must commit despite receipt failure: %v", err)
	}
	if len(repo.messages[thread.ID]) != 1 {
		t.Fatal("message should be persisted")
	}
	if len(sched.threads) != 1 || sched.threads[0] != thread.ID {
		t.Fatalf("backfill should be scheduled for the thread, got %v", sched.threads)
	}

	// Later repair creates the records the send could not.
	repo.failDeliveries = false
	created, err := repo.BackfillDeliveries(context.Background(), thread.ID)
	if err != nil || created != 1 {
		t.Fatalf("backfill created %d (%v), want 1", created, err)
	}
}

func TestSendMessageUpdatesThreadPreview(t *testing.T) {
	repo := newFakeRepo()
	thread := seedThread(t, repo, "agent", "cust1")

	uc := NewSendMessageUseCase(repo, nil, nil)
	if _, err := uc.Execute(context.Background(), SendMessageInput{
		ThreadID: thread.ID,
		SenderID: "agent",
		Content:  "latest word",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, _ := repo.GetThread(context.Background(), thread.ID)
	if got.LastMessagePreview == nil || *got.LastMessagePreview != "latest word" {
		t.Errorf("preview not updated: %v", got.LastMessagePreview)
	}
	if got.LastMessageAt == nil {
		t.Error("last_message_at not updated")
	}
}
