package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

const defaultPageSize = 50

// GetThreadMessagesInput pages a thread's history newest-first. Page is
// 1-based; a zero or negative page reads the first one.
type GetThreadMessagesInput struct {
	ThreadID    string
	PrincipalID string
	Page        int
	PageSize    int
}

type GetThreadMessagesOutput struct {
	Messages []domain.Message
	Page     int
	PageSize int
}

// GetThreadMessagesUseCase reads paginated history for an active
// participant. When a backfill scheduler is present and the read detects
// missing delivery records, it schedules a repair for them.
type GetThreadMessagesUseCase struct {
	Repo      repository.MessagingRepository
	Backfills BackfillScheduler // optional
	PageSize  int               // default for requests that name none
}

func NewGetThreadMessagesUseCase(repo repository.MessagingRepository, backfills BackfillScheduler) *GetThreadMessagesUseCase {
	return &GetThreadMessagesUseCase{Repo: repo, Backfills: backfills}
}

func (uc *GetThreadMessagesUseCase) Execute(ctx context.Context, in GetThreadMessagesInput) (GetThreadMessagesOutput, error) {
	if in.ThreadID == "" || in.PrincipalID == "" {
		return GetThreadMessagesOutput{}, fmt.Errorf("%w: thread_id and principal_id are required", domain.ErrValidation)
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize < 1 {
		if uc.PageSize > 0 {
			in.PageSize = uc.PageSize
		} else {
			in.PageSize = defaultPageSize
		}
	}

	active, err := uc.Repo.IsActiveParticipant(ctx, in.ThreadID, in.PrincipalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return GetThreadMessagesOutput{}, fmt.Errorf("%w: thread %s", domain.ErrNotFound, in.ThreadID)
		}
		return GetThreadMessagesOutput{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !active {
		return GetThreadMessagesOutput{}, fmt.Errorf("%w: not a participant of thread %s", domain.ErrAccessDenied, in.ThreadID)
	}

	msgs, err := uc.Repo.ListMessages(ctx, in.ThreadID, in.PageSize, (in.Page-1)*in.PageSize)
	if err != nil {
		return GetThreadMessagesOutput{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Backfills != nil {
		gap, err := uc.Repo.HasDeliveryGaps(ctx, in.ThreadID)
		if err != nil {
			log.Warn().Err(err).Str("thread", in.ThreadID).Msg("could not check for delivery gaps")
		} else if gap {
			if err := uc.Backfills.ScheduleBackfill(ctx, in.ThreadID); err != nil {
				log.Warn().Err(err).Str("thread", in.ThreadID).Msg("could not schedule delivery backfill")
			}
		}
	}

	return GetThreadMessagesOutput{Messages: msgs, Page: in.Page, PageSize: in.PageSize}, nil
}
