package domain

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

const shareTokenLength = 6

const shareTokenCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// Room is a named, shareable chat space. It stays visible ("kept") until
// soft-deleted by the sweeper or by moderation.
type Room struct {
	ID               uuid.UUID
	Name             string
	ShareToken       string
	CreatorSessionID uuid.UUID // uuid.Nil for anonymous-origin rooms
	DiscardedAt      time.Time // zero while kept
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Aggregates over kept messages, populated by list/get queries.
	MessageCount     int64
	ParticipantCount int64
	LastActivity     time.Time
}

// NewRoom constructs a room with a fresh share token. Token uniqueness is
// enforced by the store's unique constraint, not here; callers retry on
// conflict.
func NewRoom(name string, creatorSessionID uuid.UUID) *Room {
	now := time.Now().UTC()
	return &Room{
		ID:               uuid.New(),
		Name:             name,
		ShareToken:       GenerateShareToken(),
		CreatorSessionID: creatorSessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastActivity:     now,
	}
}

// Kept reports whether the room is visible.
func (r *Room) Kept() bool {
	if r == nil {
		return false
	}
	return r.DiscardedAt.IsZero()
}

// Discard soft-deletes the room.
func (r *Room) Discard(at time.Time) {
	r.DiscardedAt = at.UTC()
	r.UpdatedAt = at.UTC()
}

// GenerateShareToken returns a short URL-safe public room identifier.
func GenerateShareToken() string {
	buf := make([]byte, shareTokenLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = shareTokenCharset[int(b)%len(shareTokenCharset)]
	}
	return string(buf)
}

// RoomChannel names the broadcast channel for a room. Channels are keyed by
// the public share token so channel identity never leaks internal ids.
func RoomChannel(shareToken string) string {
	return "room-" + shareToken
}
