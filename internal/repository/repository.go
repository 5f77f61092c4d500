package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/anonroom/anonroom/internal/domain"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrShareTokenExists = errors.New("share token already exists")
)

// All read paths return kept (non-soft-deleted) records only, and every
// aggregate counts kept messages only. Soft-deleted content must never
// resurface through any method here.

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenDigest(ctx context.Context, digest string) (*domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByShareToken(ctx context.Context, shareToken string) (*domain.Room, error)
	// List returns kept rooms ordered by creation time descending, annotated
	// with kept-message aggregates. Offset mode.
	List(ctx context.Context, limit, offset int) ([]*domain.Room, error)
	// ListBefore is the cursor mode: kept rooms created strictly before the
	// cursor, newest first.
	ListBefore(ctx context.Context, limit int, before time.Time) ([]*domain.Room, error)
	// ListInactive returns kept rooms whose latest kept message (or creation
	// time, if none) is older than cutoff. Single aggregate query.
	ListInactive(ctx context.Context, cutoff time.Time) ([]*domain.Room, error)
	// DiscardInactive soft-deletes rooms inactive since cutoff and cascades
	// the soft delete onto their messages. Returns the number of rooms
	// discarded.
	DiscardInactive(ctx context.Context, cutoff, at time.Time) (int64, error)
	Discard(ctx context.Context, id uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uint64) (*domain.Message, error)
	// ListByRoom returns up to limit kept messages of the room with
	// id < beforeID (all when beforeID is zero), newest first.
	ListByRoom(ctx context.Context, roomID uuid.UUID, limit int, beforeID uint64) ([]*domain.Message, error)
	Discard(ctx context.Context, id uint64, at time.Time) error
	// LastByAuthorInRoom returns the author's most recent kept message in the
	// room, or ErrMessageNotFound.
	LastByAuthorInRoom(ctx context.Context, roomID, sessionID uuid.UUID) (*domain.Message, error)
	// CountByAuthorSince counts the author's kept messages across all rooms
	// created at or after since.
	CountByAuthorSince(ctx context.Context, sessionID uuid.UUID, since time.Time) (int64, error)
}
