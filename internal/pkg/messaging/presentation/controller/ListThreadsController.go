package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"supportchat/internal/auth"
	"supportchat/internal/pkg/messaging/application/usecase"
)

// ListThreadsController serves the caller's thread list, newest activity
// first, each with a derived unread count.
type ListThreadsController struct {
	UC *usecase.ListThreadsUseCase
}

func NewListThreadsController(uc *usecase.ListThreadsUseCase) *ListThreadsController {
	return &ListThreadsController{UC: uc}
}

func (h *ListThreadsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit < 1 || limit > 200 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		summaries, err := h.UC.Execute(ctx, usecase.ListThreadsInput{
			PrincipalID: auth.PrincipalID(c),
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, gin.H{
				"id":                   s.Thread.ID,
				"type":                 s.Thread.Type,
				"subject":              s.Thread.Subject,
				"is_active":            s.Thread.IsActive,
				"participant_count":    s.Thread.ParticipantCount,
				"last_message_at":      s.Thread.LastMessageAt,
				"last_message_preview": s.Thread.LastMessagePreview,
				"unread_count":         s.Unread,
			})
		}
		c.JSON(http.StatusOK, gin.H{"threads": out})
	}
}
