package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateShareToken(t *testing.T) {
	token := GenerateShareToken()
	assert.Regexp(t, "^[a-z0-9]{6}$", token)
	assert.NotEqual(t, token, GenerateShareToken())
}

func TestRoomDiscard(t *testing.T) {
	room := NewRoom("r", uuid.New())
	assert.True(t, room.Kept())

	room.Discard(time.Now())
	assert.False(t, room.Kept())
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "room-abc123", RoomChannel("abc123"))
}

func TestNewMessageSnapshotsAuthor(t *testing.T) {
	author := NewSession("digest", "ip", "ua")
	author.Nickname = "nick"

	msg := NewMessage(uuid.New(), author, "body")
	assert.Equal(t, author.ID, msg.SessionID)
	assert.Equal(t, author.DisplayName, msg.AuthorDisplayName)
	assert.Equal(t, "nick", msg.AuthorNickname)
	assert.True(t, msg.AuthoredBy(author.ID))
	assert.False(t, msg.AuthoredBy(uuid.New()))
}
