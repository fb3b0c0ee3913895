package usecase

import (
	"context"
	"errors"
	"fmt"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// DeleteMessageInput soft-deletes a message. Only the sender, or an
// admin principal, may delete; the row stays behind as a tombstone so
// replies keep a target.
type DeleteMessageInput struct {
	MessageID     string
	PrincipalID   string
	PrincipalType domain.PrincipalType
}

type DeleteMessageOutput struct {
	ThreadID string
}

type DeleteMessageUseCase struct {
	Repo repository.MessagingRepository
}

func NewDeleteMessageUseCase(repo repository.MessagingRepository) *DeleteMessageUseCase {
	return &DeleteMessageUseCase{Repo: repo}
}

func (uc *DeleteMessageUseCase) Execute(ctx context.Context, in DeleteMessageInput) (DeleteMessageOutput, error) {
	if in.MessageID == "" || in.PrincipalID == "" {
		return DeleteMessageOutput{}, fmt.Errorf("%w: message_id and principal_id are required", domain.ErrValidation)
	}

	asAdmin := in.PrincipalType == domain.PrincipalAdmin
	threadID, err := uc.Repo.SoftDeleteMessage(ctx, in.MessageID, in.PrincipalID, asAdmin)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAccessDenied):
			return DeleteMessageOutput{}, err
		default:
			return DeleteMessageOutput{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	return DeleteMessageOutput{ThreadID: threadID}, nil
}
