package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anonroom/anonroom/internal/api/http/converter"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/service"
)

type MessageController struct {
	messages service.MessageInteractor
	log      *slog.Logger
}

func NewMessageController(messages service.MessageInteractor, log *slog.Logger) *MessageController {
	return &MessageController{messages: messages, log: log}
}

func (c *MessageController) List(ctx *gin.Context) {
	type query struct {
		Limit  int    `form:"limit"`
		Before uint64 `form:"before"`
	}

	var q query
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid query parameters", codeValidation))
		return
	}

	msgs, hasMore, nextBefore, err := c.messages.ListMessages(
		ctx.Request.Context(), ctx.Param("shareToken"), q.Limit, q.Before)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	pagination := gin.H{"has_more": hasMore}
	if hasMore {
		pagination["next_before"] = nextBefore
	}

	ctx.JSON(http.StatusOK, gin.H{
		"messages":   converter.MessagesToAPI(msgs, currentSession(ctx)),
		"pagination": pagination,
	})
}

func (c *MessageController) Create(ctx *gin.Context) {
	type request struct {
		TextBody string `json:"text_body" binding:"required"`
	}

	if sessionWasExpired(ctx) {
		respondError(ctx, c.log, domain.ErrSessionExpired)
		return
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid request body", codeValidation))
		return
	}

	sess := currentSession(ctx)
	msg, err := c.messages.CreateMessage(ctx.Request.Context(), ctx.Param("shareToken"), sess, req.TextBody)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": converter.MessageToAPI(msg, sess)})
}

func (c *MessageController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid message id", codeValidation))
		return
	}

	if err := c.messages.DiscardMessage(
		ctx.Request.Context(), ctx.Param("shareToken"), id, currentSession(ctx)); err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
