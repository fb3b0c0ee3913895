package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"supportchat/internal/auth"
	"supportchat/internal/infrastructure/realtime"
	relay "supportchat/internal/infrastructure/relay/port"
	"supportchat/internal/pkg/messaging/application/usecase"
	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
	"supportchat/internal/pkg/messaging/protocol"
)

// SendMessageController is the HTTP fallback for sending when a socket is
// not available. It runs the same use case as the websocket path and fans
// the result out to live connections the same way.
type SendMessageController struct {
	UC       *usecase.SendMessageUseCase
	Repo     repository.MessagingRepository
	Registry *realtime.Registry
	Relay    relay.Relay // optional
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, repo repository.MessagingRepository, reg *realtime.Registry, rl relay.Relay) *SendMessageController {
	return &SendMessageController{UC: uc, Repo: repo, Registry: reg, Relay: rl}
}

type sendMessageRequest struct {
	Content        string  `json:"content"`
	MsgType        string  `json:"message_type"`
	ReplyToID      *string `json:"reply_to_id"`
	AttachmentURL  *string `json:"attachment_url"`
	AttachmentMeta *string `json:"attachment_meta"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		senderID := auth.PrincipalID(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		out, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ThreadID:       c.Param("threadId"),
			SenderID:       senderID,
			Content:        req.Content,
			MsgType:        domain.MessageType(req.MsgType),
			ReplyToID:      req.ReplyToID,
			AttachmentURL:  req.AttachmentURL,
			AttachmentMeta: req.AttachmentMeta,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		payload := protocol.MustEncode(protocol.TypeNewMessage, protocol.NewMessage{
			Message: protocol.MessageToPayload(*out.Message),
		})
		reached := h.Registry.Broadcast(out.Message.ThreadID, payload, senderID)
		h.Registry.Unicast(senderID, payload)

		recipients := make([]string, 0, len(reached))
		for _, id := range reached {
			if id != senderID {
				recipients = append(recipients, id)
			}
		}
		if len(recipients) > 0 {
			if err := h.Repo.MarkDelivered(ctx, out.Message.ID, recipients, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Str("message", out.Message.ID).Msg("http send: mark delivered failed")
			}
		}
		if h.Relay != nil {
			if err := h.Relay.Publish(ctx, relay.Event{Room: out.Message.ThreadID, Payload: payload}); err != nil {
				log.Warn().Err(err).Str("thread", out.Message.ThreadID).Msg("http send: relay publish failed")
			}
		}

		c.JSON(http.StatusCreated, protocol.MessageToPayload(*out.Message))
	}
}
