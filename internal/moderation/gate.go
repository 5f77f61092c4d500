package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/metrics"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

// Action identifies a rate-limited user action type.
type Action string

const (
	ActionMessageCreate  Action = "message_creation"
	ActionRoomCreate     Action = "room_creation"
	ActionNicknameUpdate Action = "nickname_update"
)

// Patterns that must never reach storage regardless of NG word configuration.
var denylist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)<object`),
	regexp.MustCompile(`(?i)<embed`),
	regexp.MustCompile(`(?i)data:text/html`),
}

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	newlineRun = regexp.MustCompile(`\n{4,}`)
)

// MessageReader is the slice of the message store the velocity checks need.
type MessageReader interface {
	LastByAuthorInRoom(ctx context.Context, roomID, sessionID uuid.UUID) (*domain.Message, error)
	CountByAuthorSince(ctx context.Context, sessionID uuid.UUID, since time.Time) (int64, error)
}

// Gate is the last line of defense before persistence: field validation,
// content moderation, and per-actor velocity limits, each with its own
// caller-visible failure class.
type Gate struct {
	cfg      config.ModerationConfig
	limits   config.RateLimitsConfig
	limiter  RateLimiter
	messages MessageReader
	ngWords  []string
	log      *slog.Logger
}

func NewGate(cfg config.ModerationConfig, limits config.RateLimitsConfig, limiter RateLimiter, messages MessageReader, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	ngWords := make([]string, 0, len(cfg.NGWords))
	for _, w := range cfg.NGWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			ngWords = append(ngWords, w)
		}
	}
	return &Gate{
		cfg:      cfg,
		limits:   limits,
		limiter:  limiter,
		messages: messages,
		ngWords:  ngWords,
		log:      log,
	}
}

// CheckContent rejects text that exceeds max runes, matches a denylist
// pattern, or contains a configured NG word. Denylist and NG word hits are
// spam rejections; length is a plain validation error.
func (g *Gate) CheckContent(text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return domain.NewValidationError("text must not be empty")
	}
	if utf8.RuneCountInString(text) > max {
		return domain.NewValidationError("text exceeds %d characters", max)
	}

	for _, pattern := range denylist {
		if pattern.MatchString(text) {
			return fmt.Errorf("%w: dangerous pattern", domain.ErrSpamDetected)
		}
	}

	lower := strings.ToLower(text)
	for _, word := range g.ngWords {
		if strings.Contains(lower, word) {
			return fmt.Errorf("%w: ng word", domain.ErrSpamDetected)
		}
	}

	return nil
}

// Sanitize strips markup, normalizes line endings, collapses runs of four or
// more newlines to three, and trims surrounding whitespace.
func (g *Gate) Sanitize(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = newlineRun.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

// CheckAction enforces the sliding-window limit configured for the action,
// keyed by actor (session digest or IP). The counter is incremented even when
// the request is ultimately rejected elsewhere, so retry storms cannot reset
// limits.
func (g *Gate) CheckAction(ctx context.Context, action Action, actor string) error {
	wl := g.windowFor(action)
	if wl.Limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("rate_limit:%s:%s", action, actor)
	ok, err := g.limiter.Allow(ctx, key, wl.Limit, wl.Window)
	if err != nil {
		// a broken counter store must not take writes down with it
		g.log.Error("rate limiter unavailable", slog.String("action", string(action)), sl.Err(err))
		return nil
	}
	if !ok {
		g.logRejection("rate_limited", string(action), actor)
		return domain.ErrRateLimited
	}
	return nil
}

// CheckMessageVelocity layers the message-specific velocity rules on top of
// the action window: a per-room cooldown since the author's last kept message
// and a global burst cap over the configured window.
func (g *Gate) CheckMessageVelocity(ctx context.Context, session *domain.Session, roomID uuid.UUID) error {
	if err := g.CheckAction(ctx, ActionMessageCreate, session.TokenDigest); err != nil {
		return err
	}

	if g.cfg.RoomCooldown > 0 {
		last, err := g.messages.LastByAuthorInRoom(ctx, roomID, session.ID)
		if err != nil && !errors.Is(err, repository.ErrMessageNotFound) {
			return err
		}
		if last != nil && time.Since(last.CreatedAt) < g.cfg.RoomCooldown {
			g.logRejection("cooldown", string(ActionMessageCreate), session.TokenDigest)
			return domain.ErrRateLimited
		}
	}

	if g.cfg.BurstLimit > 0 {
		count, err := g.messages.CountByAuthorSince(ctx, session.ID, time.Now().Add(-g.cfg.BurstWindow))
		if err != nil {
			return err
		}
		if count >= int64(g.cfg.BurstLimit) {
			g.logRejection("burst", string(ActionMessageCreate), session.TokenDigest)
			return domain.ErrRateLimited
		}
	}

	return nil
}

func (g *Gate) windowFor(action Action) config.WindowLimit {
	switch action {
	case ActionMessageCreate:
		return g.limits.MessageCreation
	case ActionRoomCreate:
		return g.limits.RoomCreation
	case ActionNicknameUpdate:
		return g.limits.NicknameUpdate
	default:
		return config.WindowLimit{}
	}
}

// Security-relevant telemetry: actor and action, never content.
func (g *Gate) logRejection(kind, action, actor string) {
	metrics.RateLimitRejectionsTotal.Inc()
	g.log.Warn("moderation rejection",
		slog.String("kind", kind),
		slog.String("action", action),
		slog.String("actor", actor),
	)
}
