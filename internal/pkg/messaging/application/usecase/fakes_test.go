package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
)

// fakeRepo is an in-memory MessagingRepository honoring the same semantics
// as the postgres adapter: monotonic delivery transitions, one record per
// recipient, soft deletes.
type fakeRepo struct {
	mu           sync.Mutex
	seq          int
	threads      map[string]*domain.Thread
	participants map[string][]domain.Participant          // threadID -> rows
	messages     map[string][]domain.Message              // threadID -> newest last
	deliveries   map[string]map[string]*domain.DeliveryRecord // messageID -> recipientID -> record

	failDeliveries bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		threads:      make(map[string]*domain.Thread),
		participants: make(map[string][]domain.Participant),
		messages:     make(map[string][]domain.Message),
		deliveries:   make(map[string]map[string]*domain.DeliveryRecord),
	}
}

func (f *fakeRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeRepo) CreateThread(ctx context.Context, t domain.Thread, participants []domain.Participant) (*domain.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.nextID("t")
	t.ParticipantCount = len(participants)
	f.threads[t.ID] = &t
	for i := range participants {
		participants[i].ThreadID = t.ID
	}
	f.participants[t.ID] = participants
	return &t, nil
}

func (f *fakeRepo) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) ListThreadsForPrincipal(ctx context.Context, principalID string, limit, offset int) ([]domain.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Thread
	for id, rows := range f.participants {
		for _, p := range rows {
			if p.PrincipalID == principalID && p.IsActive {
				out = append(out, *f.threads[id])
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) IsActiveParticipant(ctx context.Context, threadID, principalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[threadID] {
		if p.PrincipalID == principalID && p.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListActiveParticipants(ctx context.Context, threadID string) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Participant
	for _, p := range f.participants[threadID] {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeactivateParticipant(ctx context.Context, threadID, principalID string, leftAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.participants[threadID]
	found := false
	for i := range rows {
		if rows[i].PrincipalID == principalID && rows[i].IsActive {
			rows[i].IsActive = false
			rows[i].LeftAt = &leftAt
			found = true
			break
		}
	}
	if !found {
		return 0, domain.ErrNotFound
	}
	remaining := 0
	for _, p := range rows {
		if p.IsActive {
			remaining++
		}
	}
	t := f.threads[threadID]
	t.ParticipantCount = remaining
	if remaining == 0 {
		t.IsActive = false
	}
	return remaining, nil
}

func (f *fakeRepo) SaveMessage(ctx context.Context, m domain.Message) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.nextID("m")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	f.messages[m.ThreadID] = append(f.messages[m.ThreadID], m)
	if t, ok := f.threads[m.ThreadID]; ok {
		at := m.CreatedAt
		preview := m.Preview()
		t.LastMessageAt = &at
		t.LastMessagePreview = &preview
	}
	return &m, nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[threadID]
	var out []domain.Message
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeRepo) SoftDeleteMessage(ctx context.Context, messageID, requesterID string, isAdmin bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for threadID, msgs := range f.messages {
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			if msgs[i].SenderID != requesterID && !isAdmin {
				return "", domain.ErrAccessDenied
			}
			now := time.Now().UTC()
			msgs[i].Content = domain.Tombstone
			msgs[i].DeletedAt = &now
			return threadID, nil
		}
	}
	return "", domain.ErrNotFound
}

func (f *fakeRepo) CreateDeliveryRecords(ctx context.Context, messageID, threadID, senderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeliveries {
		return 0, errors.New("deliveries unavailable")
	}
	return f.createRecordsLocked(messageID, threadID, senderID), nil
}

func (f *fakeRepo) createRecordsLocked(messageID, threadID, senderID string) int64 {
	var sentAt time.Time
	for _, m := range f.messages[threadID] {
		if m.ID == messageID {
			sentAt = m.CreatedAt
			break
		}
	}
	recs := f.deliveries[messageID]
	if recs == nil {
		recs = make(map[string]*domain.DeliveryRecord)
		f.deliveries[messageID] = recs
	}
	var created int64
	for _, p := range f.participants[threadID] {
		if !p.IsActive || p.PrincipalID == senderID {
			continue
		}
		if p.JoinedAt.After(sentAt) {
			continue
		}
		if _, ok := recs[p.PrincipalID]; ok {
			continue
		}
		recs[p.PrincipalID] = &domain.DeliveryRecord{
			MessageID:     messageID,
			RecipientID:   p.PrincipalID,
			RecipientType: p.PrincipalType,
			Status:        domain.StatusSent,
		}
		created++
	}
	return created
}

func (f *fakeRepo) MarkDelivered(ctx context.Context, messageID string, recipientIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range recipientIDs {
		if r, ok := f.deliveries[messageID][id]; ok && r.Status < domain.StatusDelivered {
			r.Status = domain.StatusDelivered
			r.DeliveredAt = &at
		}
	}
	return nil
}

func (f *fakeRepo) MarkRead(ctx context.Context, threadID, principalID string, messageIDs []string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	only := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		only[id] = true
	}
	var updated int64
	for _, m := range f.messages[threadID] {
		if len(only) > 0 && !only[m.ID] {
			continue
		}
		if r, ok := f.deliveries[m.ID][principalID]; ok && r.Status < domain.StatusRead {
			r.Status = domain.StatusRead
			r.ReadAt = &at
			if r.DeliveredAt == nil {
				r.DeliveredAt = &at
			}
			updated++
		}
	}
	if updated > 0 {
		rows := f.participants[threadID]
		for i := range rows {
			if rows[i].PrincipalID == principalID && rows[i].IsActive {
				ts := at
				rows[i].LastReadAt = &ts
			}
		}
	}
	return updated, nil
}

func (f *fakeRepo) UnreadCount(ctx context.Context, threadID, principalID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages[threadID] {
		if r, ok := f.deliveries[m.ID][principalID]; ok && r.Status < domain.StatusRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) HasDeliveryGaps(ctx context.Context, threadID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages[threadID] {
		for _, p := range f.participants[threadID] {
			if !p.IsActive || p.PrincipalID == m.SenderID || p.JoinedAt.After(m.CreatedAt) {
				continue
			}
			if _, ok := f.deliveries[m.ID][p.PrincipalID]; !ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRepo) BackfillDeliveries(ctx context.Context, threadID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var created int64
	for _, m := range f.messages[threadID] {
		created += f.createRecordsLocked(m.ID, threadID, m.SenderID)
	}
	return created, nil
}

// fakeScheduler records backfill requests.
type fakeScheduler struct {
	mu      sync.Mutex
	threads []string
	err     error
}

func (s *fakeScheduler) ScheduleBackfill(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.threads = append(s.threads, threadID)
	return nil
}
