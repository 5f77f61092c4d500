package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a shared sliding-window counter keyed by actor and action.
// Implementations must be safe for concurrent use and must count rejected
// attempts too.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisRateLimiter keeps counters in a shared store so limits hold across
// processes.
type RedisRateLimiter struct {
	rdb *redis.Client
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

type windowCounter struct {
	count       int
	windowStart int64
	seen        time.Time
}

// MemoryRateLimiter is the degraded in-process fallback used when no shared
// store is configured; limits become per-process rather than global.
type MemoryRateLimiter struct {
	mu   sync.Mutex
	m    map[string]*windowCounter
	stop chan struct{}
	once sync.Once
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	l := &MemoryRateLimiter{
		m:    make(map[string]*windowCounter),
		stop: make(chan struct{}),
	}
	go l.gc()
	return l
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	sec := int64(window / time.Second)
	if sec <= 0 {
		sec = 1
	}
	windowStart := now.Unix() - now.Unix()%sec

	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.m[key]
	if !ok || wc.windowStart != windowStart {
		wc = &windowCounter{windowStart: windowStart}
		l.m[key] = wc
	}
	wc.count++
	wc.seen = now

	return wc.count <= limit, nil
}

func (l *MemoryRateLimiter) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			l.mu.Lock()
			for k, wc := range l.m {
				if wc.seen.Before(cutoff) {
					delete(l.m, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop ends the GC goroutine, used on graceful shutdown.
func (l *MemoryRateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
