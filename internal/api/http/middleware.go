package http

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/service"
)

const (
	sessionCookieName  = "chat_session"
	sessionTokenHeader = "X-Session-Token"

	ctxSessionKey        = "session"
	ctxSessionExpiredKey = "session_expired"
)

// SecurityHeaders sets the baseline response headers on every request.
func SecurityHeaders() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h := ctx.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		ctx.Next()
	}
}

// ResolveSession attaches a session to every request, creating one for first
// contact and minting a replacement token when the presented one is expired
// or unresolvable. The raw token travels only in the header/cookie; the core
// sees it once and works with the derived digest from then on.
func ResolveSession(sessions service.SessionInteractor, cfg config.SessionConfig, log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.GetHeader(sessionTokenHeader)
		if token == "" {
			if c, err := ctx.Cookie(sessionCookieName); err == nil {
				token = c
			}
		}

		ip := ctx.ClientIP()
		ua := ctx.Request.UserAgent()

		expired := false
		var sess *domain.Session

		if token != "" {
			s, _, err := sessions.GetOrCreate(ctx.Request.Context(), token, ip, ua)
			switch {
			case err == nil:
				sess = s
			case errors.Is(err, domain.ErrSessionExpired):
				// the old identity is gone; fall through to a fresh one
				expired = true
				token = ""
			default:
				respondError(ctx, log, err)
				ctx.Abort()
				return
			}
		}

		if sess == nil {
			token = domain.NewSessionToken()
			s, _, err := sessions.GetOrCreate(ctx.Request.Context(), token, ip, ua)
			if err != nil {
				respondError(ctx, log, err)
				ctx.Abort()
				return
			}
			sess = s
			ctx.SetCookie(sessionCookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.CookieSecure, true)
		}

		ctx.Set(ctxSessionKey, sess)
		ctx.Set(ctxSessionExpiredKey, expired)
		ctx.Next()
	}
}

func currentSession(ctx *gin.Context) *domain.Session {
	v, ok := ctx.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*domain.Session)
	return sess
}

func sessionWasExpired(ctx *gin.Context) bool {
	return ctx.GetBool(ctxSessionExpiredKey)
}

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipRateLimiter is a coarse per-IP token bucket in front of the API, a
// transport-level backstop under the per-actor velocity limits in the core.
type ipRateLimiter struct {
	mu  sync.Mutex
	m   map[string]*keyLimiter
	r   rate.Limit
	b   int
	ttl time.Duration
}

func newIPRateLimiter(r rate.Limit, burst int, ttl time.Duration) *ipRateLimiter {
	return &ipRateLimiter{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl}
}

func (rl *ipRateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	kl, ok := rl.m[key]
	if ok {
		kl.seen = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(rl.r, rl.b)
	rl.m[key] = &keyLimiter{lim: lim, seen: time.Now()}
	return lim
}

func (rl *ipRateLimiter) gc(stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for k, v := range rl.m {
				if now.Sub(v.seen) > rl.ttl {
					delete(rl.m, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimitByIP returns a per-IP token-bucket middleware.
func RateLimitByIP(r rate.Limit, burst int) gin.HandlerFunc {
	rl := newIPRateLimiter(r, burst, 2*time.Minute)
	go rl.gc(make(chan struct{}))
	return func(ctx *gin.Context) {
		if !rl.get(ctx.ClientIP()).Allow() {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests,
				errorEnvelope("Too many requests. Please try again later.", codeRateLimited))
			return
		}
		ctx.Next()
	}
}
