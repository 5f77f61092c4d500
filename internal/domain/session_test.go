package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTokenDigest(t *testing.T) {
	a := DeriveTokenDigest("key", "token")
	b := DeriveTokenDigest("key", "token")
	assert.Equal(t, a, b, "derivation is deterministic")
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, DeriveTokenDigest("key", "other"))
	assert.NotEqual(t, a, DeriveTokenDigest("other-key", "token"))
	assert.NotContains(t, a, "token", "digest must not embed the raw token")
}

func TestNewSessionTokenIsOpaqueAndLong(t *testing.T) {
	a := NewSessionToken()
	b := NewSessionToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "-")
}

func TestGeneratedDisplayName(t *testing.T) {
	s := NewSession("digest", "ip", "ua")
	assert.Len(t, s.DisplayName, 6)
	for _, r := range s.DisplayName {
		assert.Contains(t, displayNameCharset, string(r))
	}
}

func TestSessionExpiredAt(t *testing.T) {
	s := NewSession("digest", "ip", "ua")
	now := time.Now().UTC()

	assert.False(t, s.ExpiredAt(now, time.Hour))

	s.UpdatedAt = now.Add(-2 * time.Hour)
	assert.True(t, s.ExpiredAt(now, time.Hour))

	s.Touch()
	assert.False(t, s.ExpiredAt(time.Now().UTC(), time.Hour))
}
