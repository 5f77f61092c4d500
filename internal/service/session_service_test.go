package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/moderation"
	"github.com/anonroom/anonroom/internal/repository"
)

func testModerationGate(t *testing.T) *moderation.Gate {
	t.Helper()
	limiter := moderation.NewMemoryRateLimiter()
	t.Cleanup(limiter.Stop)
	limits := config.RateLimitsConfig{
		MessageCreation: config.WindowLimit{Limit: 1000, Window: time.Minute},
		RoomCreation:    config.WindowLimit{Limit: 1000, Window: time.Minute},
		NicknameUpdate:  config.WindowLimit{Limit: 1000, Window: time.Minute},
	}
	return moderation.NewGate(config.ModerationConfig{}, limits, limiter, repository.NewInMemoryMessageRepository(), slog.Default())
}

func newSessionService(t *testing.T) (*SessionService, *repository.InMemorySessionRepository) {
	t.Helper()
	sessions := repository.NewInMemorySessionRepository()
	cfg := config.SessionConfig{TTL: 168 * time.Hour, TokenKey: "test-key"}
	return NewSessionService(sessions, testModerationGate(t), cfg, 32, slog.Default()), sessions
}

func TestGetOrCreateMintsSessionOnFirstContact(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	token := domain.NewSessionToken()
	sess, created, err := svc.GetOrCreate(ctx, token, "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, sess.DisplayName, 6)
	assert.Empty(t, sess.Nickname)
	assert.NotEqual(t, token, sess.TokenDigest, "raw token must never be stored")
}

func TestGetOrCreateResolvesSameSessionForSameToken(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	token := domain.NewSessionToken()
	first, created, err := svc.GetOrCreate(ctx, token, "10.0.0.1", "agent-a")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.GetOrCreate(ctx, token, "10.0.0.2", "agent-b")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.DisplayName, second.DisplayName)
	assert.Equal(t, "10.0.0.2", second.IPAddress)
}

func TestGetOrCreateDistinguishesTokens(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	a, _, err := svc.GetOrCreate(ctx, domain.NewSessionToken(), "10.0.0.1", "ua")
	require.NoError(t, err)
	b, _, err := svc.GetOrCreate(ctx, domain.NewSessionToken(), "10.0.0.1", "ua")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestGetOrCreateReportsExpiredSession(t *testing.T) {
	svc, sessions := newSessionService(t)
	ctx := context.Background()

	token := domain.NewSessionToken()
	sess, _, err := svc.GetOrCreate(ctx, token, "10.0.0.1", "ua")
	require.NoError(t, err)

	// push last activity past the TTL
	sess.UpdatedAt = time.Now().UTC().Add(-169 * time.Hour)
	require.NoError(t, sessions.Update(ctx, sess))

	_, _, err = svc.GetOrCreate(ctx, token, "10.0.0.1", "ua")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	// the caller recovers by minting a fresh token
	fresh, created, err := svc.GetOrCreate(ctx, domain.NewSessionToken(), "10.0.0.1", "ua")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, sess.ID, fresh.ID)
}

func TestResolveUnknownToken(t *testing.T) {
	svc, _ := newSessionService(t)

	_, err := svc.Resolve(context.Background(), "never-seen")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestUpdateNickname(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	sess, _, err := svc.GetOrCreate(ctx, domain.NewSessionToken(), "10.0.0.1", "ua")
	require.NoError(t, err)

	updated, err := svc.UpdateNickname(ctx, sess, "  cool name  ")
	require.NoError(t, err)
	assert.Equal(t, "cool name", updated.Nickname)

	resolved, _, err := svc.GetOrCreate(ctx, domain.NewSessionToken(), "10.0.0.1", "ua")
	require.NoError(t, err)
	assert.Empty(t, resolved.Nickname, "nickname is per session")
}

func TestUpdateNicknameValidation(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	sess, _, err := svc.GetOrCreate(ctx, domain.NewSessionToken(), "10.0.0.1", "ua")
	require.NoError(t, err)

	_, err = svc.UpdateNickname(ctx, sess, "")
	assert.True(t, domain.IsValidation(err))

	_, err = svc.UpdateNickname(ctx, sess, "<b></b>")
	assert.True(t, domain.IsValidation(err), "markup-only nickname sanitizes to empty")

	long := make([]rune, 33)
	for i := range long {
		long[i] = 'n'
	}
	_, err = svc.UpdateNickname(ctx, sess, string(long))
	assert.True(t, domain.IsValidation(err))

	_, err = svc.UpdateNickname(ctx, sess, "<script>alert(1)</script>")
	assert.ErrorIs(t, err, domain.ErrSpamDetected)
}

func TestExpiresAtTracksActivity(t *testing.T) {
	svc, _ := newSessionService(t)

	sess := domain.NewSession("digest", "10.0.0.1", "ua")
	assert.Equal(t, sess.UpdatedAt.Add(168*time.Hour), svc.ExpiresAt(sess))
}
