package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// LeaveThreadInput deactivates one principal's membership in a thread.
type LeaveThreadInput struct {
	ThreadID    string
	PrincipalID string
}

// LeaveThreadOutput reports the active participants left behind. Zero means
// the thread itself was deactivated.
type LeaveThreadOutput struct {
	Remaining int
}

// LeaveThreadUseCase deactivates the participant row rather than deleting
// it, preserving history, and keeps the thread's participant count in step.
type LeaveThreadUseCase struct {
	Repo repository.MessagingRepository
}

func NewLeaveThreadUseCase(repo repository.MessagingRepository) *LeaveThreadUseCase {
	return &LeaveThreadUseCase{Repo: repo}
}

func (uc *LeaveThreadUseCase) Execute(ctx context.Context, in LeaveThreadInput) (*LeaveThreadOutput, error) {
	if in.ThreadID == "" || in.PrincipalID == "" {
		return nil, fmt.Errorf("%w: thread_id and principal_id are required", domain.ErrValidation)
	}

	remaining, err := uc.Repo.DeactivateParticipant(ctx, in.ThreadID, in.PrincipalID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &LeaveThreadOutput{Remaining: remaining}, nil
}
