package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// ListThreadsInput pages through a principal's threads, most recently
// active first.
type ListThreadsInput struct {
	PrincipalID string
	Limit       int
	Offset      int
}

// ThreadSummary pairs a thread with the caller's derived unread count.
type ThreadSummary struct {
	Thread domain.Thread
	Unread int
}

// ListThreadsUseCase lists the principal's threads with unread counts.
type ListThreadsUseCase struct {
	Repo   repository.MessagingRepository
	Unread *UnreadCounts // optional; nil omits counts
}

func NewListThreadsUseCase(repo repository.MessagingRepository, unread *UnreadCounts) *ListThreadsUseCase {
	return &ListThreadsUseCase{Repo: repo, Unread: unread}
}

func (uc *ListThreadsUseCase) Execute(ctx context.Context, in ListThreadsInput) ([]ThreadSummary, error) {
	if in.PrincipalID == "" {
		return nil, fmt.Errorf("%w: principal_id is required", domain.ErrValidation)
	}

	threads, err := uc.Repo.ListThreadsForPrincipal(ctx, in.PrincipalID, in.Limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	out := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		s := ThreadSummary{Thread: t}
		if uc.Unread != nil {
			n, err := uc.Unread.Get(ctx, t.ID, in.PrincipalID)
			if err != nil {
				// Unread counts are a convenience projection; listing still
				// succeeds without them.
				log.Debug().Err(err).Str("thread", t.ID).Msg("unread count unavailable")
			} else {
				s.Unread = n
			}
		}
		out = append(out, s)
	}
	return out, nil
}
