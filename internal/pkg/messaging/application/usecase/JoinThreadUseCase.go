package usecase

import (
	"context"
	"fmt"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// JoinThreadInput validates a request to attach a connection to a thread room.
type JoinThreadInput struct {
	ThreadID    string
	PrincipalID string
}

// JoinThreadUseCase ensures the principal is an active participant before
// the registry adds the connection to the room. A principal who is not an
// active participant gets the access-denied error and no room membership is
// created.
type JoinThreadUseCase struct {
	Repo repository.MessagingRepository
}

func NewJoinThreadUseCase(repo repository.MessagingRepository) *JoinThreadUseCase {
	return &JoinThreadUseCase{Repo: repo}
}

func (uc *JoinThreadUseCase) Execute(ctx context.Context, in JoinThreadInput) error {
	if in.ThreadID == "" || in.PrincipalID == "" {
		return fmt.Errorf("%w: thread_id and principal_id are required", domain.ErrValidation)
	}

	ok, err := uc.Repo.IsActiveParticipant(ctx, in.ThreadID, in.PrincipalID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return domain.ErrAccessDenied
	}
	return nil
}
