package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

const (
	codeNotFound       = "NOT_FOUND"
	codeValidation     = "VALIDATION_ERROR"
	codeForbidden      = "FORBIDDEN"
	codeRateLimited    = "RATE_LIMITED"
	codeSpamDetected   = "SPAM_DETECTED"
	codeSessionExpired = "SESSION_EXPIRED"
	codeInternal       = "INTERNAL_SERVER_ERROR"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func errorEnvelope(message, code string) gin.H {
	return gin.H{"error": errorBody{Message: message, Code: code}}
}

// respondError maps core errors onto the uniform {error: {message, code}}
// envelope. Soft-deleted and never-existed records are indistinguishable, and
// internal detail never leaks.
func respondError(ctx *gin.Context, log *slog.Logger, err error) {
	switch {
	case domain.IsValidation(err):
		ctx.JSON(http.StatusUnprocessableEntity, errorEnvelope(err.Error(), codeValidation))
	case errors.Is(err, domain.ErrSpamDetected):
		ctx.JSON(http.StatusUnprocessableEntity, errorEnvelope("Prohibited content detected", codeSpamDetected))
	case errors.Is(err, domain.ErrRateLimited):
		ctx.JSON(http.StatusTooManyRequests, errorEnvelope("Rate limit exceeded. Please try again later.", codeRateLimited))
	case errors.Is(err, domain.ErrForbidden):
		ctx.JSON(http.StatusForbidden, errorEnvelope("Forbidden", codeForbidden))
	case errors.Is(err, domain.ErrSessionExpired):
		ctx.JSON(http.StatusUnauthorized, errorEnvelope("Session expired", codeSessionExpired))
	case errors.Is(err, repository.ErrRoomNotFound):
		ctx.JSON(http.StatusNotFound, errorEnvelope("Room not found", codeNotFound))
	case errors.Is(err, repository.ErrMessageNotFound):
		ctx.JSON(http.StatusNotFound, errorEnvelope("Message not found", codeNotFound))
	case errors.Is(err, repository.ErrSessionNotFound):
		ctx.JSON(http.StatusNotFound, errorEnvelope("Session not found", codeNotFound))
	default:
		log.Error("internal error", sl.Err(err))
		ctx.JSON(http.StatusInternalServerError, errorEnvelope("Internal server error", codeInternal))
	}
}
