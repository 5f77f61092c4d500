package moderation

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/repository"
)

func testGate(t *testing.T, cfg config.ModerationConfig, limits config.RateLimitsConfig, messages MessageReader) *Gate {
	t.Helper()
	limiter := NewMemoryRateLimiter()
	t.Cleanup(limiter.Stop)
	return NewGate(cfg, limits, limiter, messages, slog.Default())
}

func TestCheckContentRejectsEmptyAndOversized(t *testing.T) {
	g := testGate(t, config.ModerationConfig{}, config.RateLimitsConfig{}, nil)

	err := g.CheckContent("", 100)
	assert.True(t, domain.IsValidation(err))

	err = g.CheckContent("   \n\t  ", 100)
	assert.True(t, domain.IsValidation(err))

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'x'
	}
	err = g.CheckContent(string(long), 100)
	assert.True(t, domain.IsValidation(err))

	assert.NoError(t, g.CheckContent(string(long[:100]), 100))
}

func TestCheckContentRejectsDangerousPatterns(t *testing.T) {
	g := testGate(t, config.ModerationConfig{}, config.RateLimitsConfig{}, nil)

	cases := []string{
		"hello <script>alert(1)</script>",
		"hello <SCRIPT src=x>",
		"click javascript:alert(1)",
		"<img onerror=alert(1)>",
		"<img onerror = alert(1)>",
		"<iframe src=x>",
		"<object data=x>",
		"<embed src=x>",
		"visit data:text/html;base64,xxx",
	}
	for _, text := range cases {
		err := g.CheckContent(text, 1000)
		assert.ErrorIs(t, err, domain.ErrSpamDetected, "input: %q", text)
	}
}

func TestCheckContentRejectsNGWords(t *testing.T) {
	g := testGate(t, config.ModerationConfig{NGWords: []string{"Badword", " spam "}}, config.RateLimitsConfig{}, nil)

	assert.ErrorIs(t, g.CheckContent("this is BADWORD here", 1000), domain.ErrSpamDetected)
	assert.ErrorIs(t, g.CheckContent("free spammy offer", 1000), domain.ErrSpamDetected)
	assert.NoError(t, g.CheckContent("perfectly fine", 1000))
}

func TestSanitize(t *testing.T) {
	g := testGate(t, config.ModerationConfig{}, config.RateLimitsConfig{}, nil)

	assert.Equal(t, "hello world", g.Sanitize("  <b>hello</b> world  "))
	assert.Equal(t, "a\nb", g.Sanitize("a\r\nb"))
	assert.Equal(t, "a\n\n\nb", g.Sanitize("a\n\n\n\n\n\n\nb"))
	assert.Equal(t, "plain", g.Sanitize("plain"))
}

func TestCheckActionEnforcesWindowLimit(t *testing.T) {
	limits := config.RateLimitsConfig{
		NicknameUpdate: config.WindowLimit{Limit: 3, Window: time.Hour},
	}
	g := testGate(t, config.ModerationConfig{}, limits, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.CheckAction(ctx, ActionNicknameUpdate, "actor-a"))
	}
	assert.ErrorIs(t, g.CheckAction(ctx, ActionNicknameUpdate, "actor-a"), domain.ErrRateLimited)

	// a different actor has its own window
	assert.NoError(t, g.CheckAction(ctx, ActionNicknameUpdate, "actor-b"))
}

func TestCheckActionUnconfiguredActionAllows(t *testing.T) {
	g := testGate(t, config.ModerationConfig{}, config.RateLimitsConfig{}, nil)
	assert.NoError(t, g.CheckAction(context.Background(), ActionRoomCreate, "actor"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func TestCheckActionFailsOpenWhenLimiterUnavailable(t *testing.T) {
	limits := config.RateLimitsConfig{
		MessageCreation: config.WindowLimit{Limit: 1, Window: time.Minute},
	}
	g := NewGate(config.ModerationConfig{}, limits, failingLimiter{}, nil, slog.Default())

	assert.NoError(t, g.CheckAction(context.Background(), ActionMessageCreate, "actor"))
}

func TestCheckMessageVelocityRoomCooldown(t *testing.T) {
	messages := repository.NewInMemoryMessageRepository()
	cfg := config.ModerationConfig{RoomCooldown: 30 * time.Second}
	limits := config.RateLimitsConfig{
		MessageCreation: config.WindowLimit{Limit: 1000, Window: time.Minute},
	}
	g := testGate(t, cfg, limits, messages)
	ctx := context.Background()

	author := domain.NewSession("digest-a", "127.0.0.1", "ua")
	roomID := uuid.New()

	// last message 15s ago: still inside the cooldown
	recent := domain.NewMessage(roomID, author, "hi")
	recent.CreatedAt = time.Now().Add(-15 * time.Second)
	require.NoError(t, messages.Create(ctx, recent))

	assert.ErrorIs(t, g.CheckMessageVelocity(ctx, author, roomID), domain.ErrRateLimited)

	// push the last message past the cooldown
	require.NoError(t, messages.Discard(ctx, recent.ID, time.Now()))
	old := domain.NewMessage(roomID, author, "hi")
	old.CreatedAt = time.Now().Add(-31 * time.Second)
	require.NoError(t, messages.Create(ctx, old))

	assert.NoError(t, g.CheckMessageVelocity(ctx, author, roomID))

	// the cooldown is per room
	assert.NoError(t, g.CheckMessageVelocity(ctx, author, uuid.New()))
}

func TestCheckMessageVelocityBurstCap(t *testing.T) {
	messages := repository.NewInMemoryMessageRepository()
	cfg := config.ModerationConfig{
		BurstLimit:  5,
		BurstWindow: time.Minute,
	}
	limits := config.RateLimitsConfig{
		MessageCreation: config.WindowLimit{Limit: 1000, Window: time.Minute},
	}
	g := testGate(t, cfg, limits, messages)
	ctx := context.Background()

	author := domain.NewSession("digest-b", "127.0.0.1", "ua")

	for i := 0; i < 5; i++ {
		msg := domain.NewMessage(uuid.New(), author, "hi")
		require.NoError(t, messages.Create(ctx, msg))
	}

	assert.ErrorIs(t, g.CheckMessageVelocity(ctx, author, uuid.New()), domain.ErrRateLimited)
}
