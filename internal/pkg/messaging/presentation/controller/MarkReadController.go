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
	"supportchat/internal/pkg/messaging/protocol"
)

// MarkReadController marks messages read over HTTP and echoes the read
// receipt into the thread's room.
type MarkReadController struct {
	UC       *usecase.MarkReadUseCase
	Registry *realtime.Registry
	Relay    relay.Relay // optional
}

func NewMarkReadController(uc *usecase.MarkReadUseCase, reg *realtime.Registry, rl relay.Relay) *MarkReadController {
	return &MarkReadController{UC: uc, Registry: reg, Relay: rl}
}

type markReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markReadRequest
		// An empty body means "mark the whole thread read".
		_ = c.ShouldBindJSON(&req)
		principalID := auth.PrincipalID(c)
		threadID := c.Param("threadId")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		out, err := h.UC.Execute(ctx, usecase.MarkReadInput{
			ThreadID:    threadID,
			PrincipalID: principalID,
			MessageIDs:  req.MessageIDs,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		if out.Updated > 0 {
			payload := protocol.MustEncode(protocol.TypeMessagesRead, protocol.MessagesRead{
				ThreadID:    threadID,
				RecipientID: principalID,
				Timestamp:   out.ReadAt,
			})
			h.Registry.Broadcast(threadID, payload, principalID)
			if h.Relay != nil {
				if err := h.Relay.Publish(ctx, relay.Event{Room: threadID, Payload: payload}); err != nil {
					log.Warn().Err(err).Str("thread", threadID).Msg("mark read: relay publish failed")
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"updated": out.Updated, "read_at": out.ReadAt})
	}
}
