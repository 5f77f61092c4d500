package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiterCountsWithinWindow(t *testing.T) {
	l := NewMemoryRateLimiter()
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "k", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}

	ok, err := l.Allow(ctx, "k", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// rejected attempts keep counting
	ok, err = l.Allow(ctx, "k", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryRateLimiter()
	defer l.Stop()
	ctx := context.Background()

	ok, err := l.Allow(ctx, "a", 1, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "a", 1, time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l.Allow(ctx, "b", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryRateLimiterStopIsIdempotent(t *testing.T) {
	l := NewMemoryRateLimiter()
	l.Stop()
	l.Stop()
}
