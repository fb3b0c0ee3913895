package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supportchat/internal/auth"
	"supportchat/internal/pkg/messaging/application/usecase"
	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// CreateThreadController handles the thread creation endpoint.
type CreateThreadController struct {
	UC *usecase.CreateThreadUseCase
}

func NewCreateThreadController(repo repository.MessagingRepository) *CreateThreadController {
	return &CreateThreadController{UC: usecase.NewCreateThreadUseCase(repo)}
}

type createThreadRequest struct {
	Type         string `json:"type"`
	Subject      string `json:"subject"`
	Participants []struct {
		PrincipalID   string `json:"principal_id" binding:"required"`
		PrincipalType string `json:"principal_type" binding:"required"`
	} `json:"participants"`
}

func (h *CreateThreadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createThreadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.CreateThreadInput{
			Type:        domain.ThreadType(req.Type),
			Subject:     req.Subject,
			CreatorID:   auth.PrincipalID(c),
			CreatorType: domain.PrincipalType(auth.PrincipalType(c)),
		}
		for _, p := range req.Participants {
			in.Participants = append(in.Participants, usecase.CreateThreadParticipant{
				PrincipalID:   p.PrincipalID,
				PrincipalType: domain.PrincipalType(p.PrincipalType),
			})
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		thread, err := h.UC.Execute(ctx, in)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":                thread.ID,
			"type":              thread.Type,
			"subject":           thread.Subject,
			"participant_count": thread.ParticipantCount,
			"created_at":        thread.CreatedAt,
		})
	}
}
