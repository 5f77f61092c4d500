package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a text post inside a room. Author display name and nickname are
// snapshotted at send time so later nickname changes do not rewrite history.
type Message struct {
	ID                uint64
	RoomID            uuid.UUID
	SessionID         uuid.UUID
	TextBody          string
	AuthorDisplayName string
	AuthorNickname    string
	DiscardedAt       time.Time // zero while kept
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewMessage constructs a kept message authored by the given session. The id
// is assigned by the store.
func NewMessage(roomID uuid.UUID, author *Session, textBody string) *Message {
	now := time.Now().UTC()
	msg := &Message{
		RoomID:    roomID,
		TextBody:  textBody,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if author != nil {
		msg.SessionID = author.ID
		msg.AuthorDisplayName = author.DisplayName
		msg.AuthorNickname = author.Nickname
	}
	return msg
}

// Kept reports whether the message is visible.
func (m *Message) Kept() bool {
	if m == nil {
		return false
	}
	return m.DiscardedAt.IsZero()
}

// Discard soft-deletes the message.
func (m *Message) Discard(at time.Time) {
	m.DiscardedAt = at.UTC()
	m.UpdatedAt = at.UTC()
}

// AuthoredBy reports whether the requesting session wrote this message.
func (m *Message) AuthoredBy(sessionID uuid.UUID) bool {
	return m != nil && m.SessionID == sessionID
}
