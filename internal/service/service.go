package service

import (
	"context"
	"time"

	"github.com/anonroom/anonroom/internal/broadcast"
	"github.com/anonroom/anonroom/internal/domain"
)

type SessionInteractor interface {
	// Resolve maps an external token to its session. Expired sessions behave
	// as not found for callers that only care about existence; the distinct
	// error lets the API surface report SESSION_EXPIRED.
	Resolve(ctx context.Context, externalToken string) (*domain.Session, error)
	// GetOrCreate resolves the token and creates a session on first contact.
	// The bool reports whether a session was created. Returns
	// domain.ErrSessionExpired for a stale token; callers mint a new one.
	GetOrCreate(ctx context.Context, externalToken, ipAddress, userAgent string) (*domain.Session, bool, error)
	UpdateNickname(ctx context.Context, session *domain.Session, nickname string) (*domain.Session, error)
	Touch(ctx context.Context, session *domain.Session) error
	// ExpiresAt reports when the session will expire absent further activity.
	ExpiresAt(session *domain.Session) time.Time
}

type RoomInteractor interface {
	CreateRoom(ctx context.Context, name string, creator *domain.Session) (*domain.Room, error)
	GetRoom(ctx context.Context, shareToken string) (*domain.Room, error)
	// ListRooms is offset mode; the bool reports whether more rooms remain.
	ListRooms(ctx context.Context, limit, offset int) ([]*domain.Room, bool, error)
	// ListRoomsBefore is cursor mode: rooms created strictly before cursor
	// (zero cursor means newest). Returns the next cursor alongside has-more.
	ListRoomsBefore(ctx context.Context, limit int, cursor time.Time) ([]*domain.Room, bool, time.Time, error)
	// Subscribe attaches a realtime subscriber to a kept room's channel.
	Subscribe(ctx context.Context, shareToken string) (*broadcast.Subscription, error)
}

type MessageInteractor interface {
	CreateMessage(ctx context.Context, shareToken string, author *domain.Session, textBody string) (*domain.Message, error)
	// ListMessages returns up to limit kept messages older than beforeID
	// (zero means newest), in ascending order for display, with has-more and
	// the cursor for the next page.
	ListMessages(ctx context.Context, shareToken string, limit int, beforeID uint64) ([]*domain.Message, bool, uint64, error)
	// DiscardMessage soft-deletes a message, author-only.
	DiscardMessage(ctx context.Context, shareToken string, messageID uint64, requester *domain.Session) error
}
