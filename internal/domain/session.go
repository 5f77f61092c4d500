package domain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

const displayNameLength = 6

const displayNameCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Session is an anonymous, cookie-token-derived identity scoped to a browser.
// The row never holds the raw external token, only its keyed digest.
type Session struct {
	ID          uuid.UUID
	TokenDigest string
	DisplayName string
	Nickname    string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSession constructs a session for a freshly seen token digest. The display
// name is random and immutable; collisions are accepted as negligible and are
// not enforced unique.
func NewSession(tokenDigest, ipAddress, userAgent string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.New(),
		TokenDigest: tokenDigest,
		DisplayName: generateDisplayName(),
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ExpiredAt reports whether the session's last activity is older than ttl.
func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if s == nil {
		return true
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// Touch bumps last activity.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// DeriveTokenDigest maps a raw external token to the stable internal
// identifier via a keyed one-way transform. The raw token must never be
// stored, compared directly, or logged.
func DeriveTokenDigest(key, rawToken string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(rawToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewSessionToken mints a raw external token for a browser that arrived
// without one.
func NewSessionToken() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}

func generateDisplayName() string {
	buf := make([]byte, displayNameLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is not survivable for anything else either
		panic(err)
	}
	for i, b := range buf {
		buf[i] = displayNameCharset[int(b)%len(displayNameCharset)]
	}
	return string(buf)
}
