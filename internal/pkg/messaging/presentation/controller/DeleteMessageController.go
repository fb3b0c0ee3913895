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
	"supportchat/internal/pkg/messaging/protocol"
)

// DeleteMessageController soft-deletes a message and tells the room the
// content was tombstoned via thread_updated.
type DeleteMessageController struct {
	UC       *usecase.DeleteMessageUseCase
	Registry *realtime.Registry
	Relay    relay.Relay // optional
}

func NewDeleteMessageController(uc *usecase.DeleteMessageUseCase, reg *realtime.Registry, rl relay.Relay) *DeleteMessageController {
	return &DeleteMessageController{UC: uc, Registry: reg, Relay: rl}
}

func (h *DeleteMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID := c.Param("messageId")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		out, err := h.UC.Execute(ctx, usecase.DeleteMessageInput{
			MessageID:     messageID,
			PrincipalID:   auth.PrincipalID(c),
			PrincipalType: domain.PrincipalType(auth.PrincipalType(c)),
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		payload := protocol.MustEncode(protocol.TypeThreadUpdated, protocol.ThreadUpdated{
			ThreadID: out.ThreadID,
			Changes:  map[string]any{"deleted_message_id": messageID},
		})
		h.Registry.Broadcast(out.ThreadID, payload, "")
		if h.Relay != nil {
			if err := h.Relay.Publish(ctx, relay.Event{Room: out.ThreadID, Payload: payload}); err != nil {
				log.Warn().Err(err).Str("thread", out.ThreadID).Msg("delete: relay publish failed")
			}
		}

		c.JSON(http.StatusOK, gin.H{"thread_id": out.ThreadID, "message_id": messageID})
	}
}
