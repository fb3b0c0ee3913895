package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"supportchat/internal/auth"
	"supportchat/internal/pkg/messaging/application/usecase"
	"supportchat/internal/pkg/messaging/protocol"
)

// GetThreadMessagesController pages a thread's message history.
type GetThreadMessagesController struct {
	UC *usecase.GetThreadMessagesUseCase
}

func NewGetThreadMessagesController(uc *usecase.GetThreadMessagesUseCase) *GetThreadMessagesController {
	return &GetThreadMessagesController{UC: uc}
}

func (h *GetThreadMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		out, err := h.UC.Execute(ctx, usecase.GetThreadMessagesInput{
			ThreadID:    c.Param("threadId"),
			PrincipalID: auth.PrincipalID(c),
			Page:        page,
			PageSize:    pageSize,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		msgs := make([]protocol.MessagePayload, 0, len(out.Messages))
		for _, m := range out.Messages {
			msgs = append(msgs, protocol.MessageToPayload(m))
		}
		c.JSON(http.StatusOK, gin.H{
			"messages":  msgs,
			"page":      out.Page,
			"page_size": out.PageSize,
		})
	}
}
