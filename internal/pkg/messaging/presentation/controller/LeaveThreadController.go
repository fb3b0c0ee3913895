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

// LeaveThreadController handles the persistent leave: the participant row is
// deactivated, unlike the socket leave_thread event which only releases room
// membership.
type LeaveThreadController struct {
	UC       *usecase.LeaveThreadUseCase
	Registry *realtime.Registry
	Relay    relay.Relay // optional
}

func NewLeaveThreadController(uc *usecase.LeaveThreadUseCase, reg *realtime.Registry, rl relay.Relay) *LeaveThreadController {
	return &LeaveThreadController{UC: uc, Registry: reg, Relay: rl}
}

func (h *LeaveThreadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		principalID := auth.PrincipalID(c)
		threadID := c.Param("threadId")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		out, err := h.UC.Execute(ctx, usecase.LeaveThreadInput{
			ThreadID:    threadID,
			PrincipalID: principalID,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		payload := protocol.MustEncode(protocol.TypeUserLeft, protocol.UserLeft{
			ThreadID:    threadID,
			PrincipalID: principalID,
		})
		h.Registry.Broadcast(threadID, payload, principalID)
		if h.Relay != nil {
			if err := h.Relay.Publish(ctx, relay.Event{Room: threadID, Payload: payload}); err != nil {
				log.Warn().Err(err).Str("thread", threadID).Msg("leave: relay publish failed")
			}
		}

		c.JSON(http.StatusOK, gin.H{"remaining": out.Remaining})
	}
}
