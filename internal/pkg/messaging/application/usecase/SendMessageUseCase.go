package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"supportchat/internal/metrics"
	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message. Content
// validation and defaults run through domain.NewMessage so the socket and
// HTTP paths share one rule set.
type SendMessageInput struct {
	ThreadID       string
	SenderID       string
	Content        string
	MsgType        domain.MessageType
	ReplyToID      *string
	AttachmentURL  *string
	AttachmentMeta *string
}

// SendMessageOutput is the persisted message plus the recipients delivery
// records were created for, so the transport layer can fan out and mark
// live recipients DELIVERED.
type SendMessageOutput struct {
	Message    *domain.Message
	Recipients []domain.Participant
}

// SendMessageUseCase persists a message and creates one SENT delivery
// record per active participant except the sender. The message write and
// the receipt writes are separate: a receipt failure never rolls back the
// message, it schedules a backfill instead.
type SendMessageUseCase struct {
	Repo      repository.MessagingRepository
	Backfills BackfillScheduler // optional; nil means repair on next read only
	Unread    UnreadInvalidator // optional
}

func NewSendMessageUseCase(repo repository.MessagingRepository, backfills BackfillScheduler, unread UnreadInvalidator) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Backfills: backfills, Unread: unread}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	if in.ThreadID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("%w: thread_id and sender_id are required", domain.ErrValidation)
	}

	isParticipant, err := uc.Repo.IsActiveParticipant(ctx, in.ThreadID, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !isParticipant {
		return nil, domain.ErrAccessDenied
	}

	msg, err := domain.NewMessage(domain.Message{
		ThreadID:       in.ThreadID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		MsgType:        in.MsgType,
		ReplyToID:      in.ReplyToID,
		AttachmentURL:  in.AttachmentURL,
		AttachmentMeta: in.AttachmentMeta,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	saved, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesTotal.Inc()

	recipients, err := uc.Repo.ListActiveParticipants(ctx, in.ThreadID)
	if err == nil {
		filtered := recipients[:0]
		for _, p := range recipients {
			if p.PrincipalID != in.SenderID {
				filtered = append(filtered, p)
			}
		}
		recipients = filtered
	} else {
		log.Warn().Err(err).Str("thread", in.ThreadID).Msg("send: listing recipients failed")
		recipients = nil
	}

	// The message is durable at this point. A delivery-record failure is
	// recoverable: schedule a backfill rather than failing the send.
	if _, err := uc.Repo.CreateDeliveryRecords(ctx, saved.ID, in.ThreadID, in.SenderID); err != nil {
		log.Warn().Err(err).Str("message", saved.ID).Msg("send: delivery records not created, scheduling backfill")
		if uc.Backfills != nil {
			if qerr := uc.Backfills.ScheduleBackfill(ctx, in.ThreadID); qerr != nil {
				log.Error().Err(qerr).Str("thread", in.ThreadID).Msg("send: backfill enqueue failed")
			}
		}
	}

	if uc.Unread != nil {
		uc.Unread.Invalidate(ctx, in.ThreadID, recipients)
	}

	return &SendMessageOutput{Message: saved, Recipients: recipients}, nil
}
