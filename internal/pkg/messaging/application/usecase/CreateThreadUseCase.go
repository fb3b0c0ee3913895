package usecase

import (
	"context"
	"fmt"
	"time"

	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// CreateThreadInput carries the data needed to open a new conversation. The
// creator is always enrolled as a participant; support threads give the
// first admin participant the admin role.
type CreateThreadInput struct {
	Type         domain.ThreadType
	Subject      string
	CreatorID    string
	CreatorType  domain.PrincipalType
	Participants []CreateThreadParticipant
}

type CreateThreadParticipant struct {
	PrincipalID   string
	PrincipalType domain.PrincipalType
}

// CreateThreadUseCase opens a thread with its initial active participants.
type CreateThreadUseCase struct {
	Repo repository.MessagingRepository
}

func NewCreateThreadUseCase(repo repository.MessagingRepository) *CreateThreadUseCase {
	return &CreateThreadUseCase{Repo: repo}
}

func (uc *CreateThreadUseCase) Execute(ctx context.Context, in CreateThreadInput) (*domain.Thread, error) {
	if in.CreatorID == "" || !in.CreatorType.Valid() {
		return nil, fmt.Errorf("%w: creator is required", domain.ErrValidation)
	}

	t, err := domain.NewThread(domain.Thread{Type: in.Type, Subject: in.Subject})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := time.Now().UTC()
	seen := map[string]struct{}{in.CreatorID: {}}
	participants := []domain.Participant{{
		PrincipalID:   in.CreatorID,
		PrincipalType: in.CreatorType,
		Role:          roleFor(in.CreatorType),
		JoinedAt:      now,
		IsActive:      true,
	}}
	for _, p := range in.Participants {
		if p.PrincipalID == "" || !p.PrincipalType.Valid() {
			return nil, fmt.Errorf("%w: participant principal id and type are required", domain.ErrValidation)
		}
		if _, dup := seen[p.PrincipalID]; dup {
			continue
		}
		seen[p.PrincipalID] = struct{}{}
		participants = append(participants, domain.Participant{
			PrincipalID:   p.PrincipalID,
			PrincipalType: p.PrincipalType,
			Role:          roleFor(p.PrincipalType),
			JoinedAt:      now,
			IsActive:      true,
		})
	}

	created, err := uc.Repo.CreateThread(ctx, *t, participants)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return created, nil
}

func roleFor(pt domain.PrincipalType) domain.ParticipantRole {
	if pt == domain.PrincipalAdmin {
		return domain.RoleAdmin
	}
	return domain.RoleMember
}
