package domain

import (
	"errors"
	"fmt"
)

// Cross-cutting failure classes. The API layer maps these onto the uniform
// {error: {message, code}} envelope; see api/http.
var (
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrSpamDetected   = errors.New("prohibited content detected")
	ErrForbidden      = errors.New("forbidden")
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError is a locally recoverable input error with a message safe to
// show to the client.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
