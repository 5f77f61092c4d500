package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anonroom/anonroom/internal/api/http/converter"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/service"
)

type SessionController struct {
	sessions service.SessionInteractor
	log      *slog.Logger
}

func NewSessionController(sessions service.SessionInteractor, log *slog.Logger) *SessionController {
	return &SessionController{sessions: sessions, log: log}
}

func (c *SessionController) Show(ctx *gin.Context) {
	sess := currentSession(ctx)
	if sess == nil {
		respondError(ctx, c.log, domain.ErrSessionExpired)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"session": converter.SessionToAPI(sess, c.sessions.ExpiresAt(sess))})
}

func (c *SessionController) Update(ctx *gin.Context) {
	type request struct {
		Nickname string `json:"nickname" binding:"required"`
	}

	// a replaced (expired) identity must not silently accept writes meant
	// for the old one
	if sessionWasExpired(ctx) {
		respondError(ctx, c.log, domain.ErrSessionExpired)
		return
	}

	sess := currentSession(ctx)
	if sess == nil {
		respondError(ctx, c.log, domain.ErrSessionExpired)
		return
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid request body", codeValidation))
		return
	}

	updated, err := c.sessions.UpdateNickname(ctx.Request.Context(), sess, req.Nickname)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"session": converter.SessionToAPI(updated, c.sessions.ExpiresAt(updated))})
}
