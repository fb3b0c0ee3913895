package usecase

import (
	"context"
	"fmt"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// MarkReadInput marks the principal's delivery records in the thread READ.
// Empty MessageIDs means everything unread in the thread.
type MarkReadInput struct {
	ThreadID    string
	PrincipalID string
	MessageIDs  []string
}

// MarkReadOutput reports what changed; Updated == 0 on a redundant call.
type MarkReadOutput struct {
	Updated int64
	ReadAt  time.Time
}

// MarkReadUseCase drives the read-receipt protocol. It is safe to call
// redundantly: records already READ are untouched and no error is returned,
// so retries and duplicate client events cannot corrupt state.
type MarkReadUseCase struct {
	Repo   repository.MessagingRepository
	Unread *UnreadCounts // optional
}

func NewMarkReadUseCase(repo repository.MessagingRepository, unread *UnreadCounts) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo, Unread: unread}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (*MarkReadOutput, error) {
	if in.ThreadID == "" || in.PrincipalID == "" {
		return nil, fmt.Errorf("%w: thread_id and principal_id are required", domain.ErrValidation)
	}

	isParticipant, err := uc.Repo.IsActiveParticipant(ctx, in.ThreadID, in.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !isParticipant {
		return nil, domain.ErrAccessDenied
	}

	readAt := time.Now().UTC()
	updated, err := uc.Repo.MarkRead(ctx, in.ThreadID, in.PrincipalID, in.MessageIDs, readAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Unread != nil {
		uc.Unread.InvalidateOne(ctx, in.ThreadID, in.PrincipalID)
	}
	return &MarkReadOutput{Updated: updated, ReadAt: readAt}, nil
}
