package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/moderation"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

type SessionService struct {
	sessions repository.SessionRepository
	gate     *moderation.Gate
	cfg      config.SessionConfig
	maxNick  int
	log      *slog.Logger
}

func NewSessionService(sessions repository.SessionRepository, gate *moderation.Gate, cfg config.SessionConfig, maxNickname int, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		sessions: sessions,
		gate:     gate,
		cfg:      cfg,
		maxNick:  maxNickname,
		log:      log,
	}
}

func (s *SessionService) Resolve(ctx context.Context, externalToken string) (*domain.Session, error) {
	if externalToken == "" {
		return nil, repository.ErrSessionNotFound
	}

	digest := domain.DeriveTokenDigest(s.cfg.TokenKey, externalToken)
	session, err := s.sessions.GetByTokenDigest(ctx, digest)
	if err != nil {
		return nil, err
	}

	if session.ExpiredAt(time.Now().UTC(), s.cfg.TTL) {
		return nil, domain.ErrSessionExpired
	}

	return session, nil
}

func (s *SessionService) GetOrCreate(ctx context.Context, externalToken, ipAddress, userAgent string) (*domain.Session, bool, error) {
	const op = "service.session.getOrCreate"

	session, err := s.Resolve(ctx, externalToken)
	switch {
	case err == nil:
		session.IPAddress = ipAddress
		session.UserAgent = userAgent
		session.Touch()
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, false, err
		}
		return session, false, nil

	case errors.Is(err, domain.ErrSessionExpired):
		// stale row stays for the sweeper; the caller mints a fresh token
		return nil, false, domain.ErrSessionExpired

	case errors.Is(err, repository.ErrSessionNotFound):
		digest := domain.DeriveTokenDigest(s.cfg.TokenKey, externalToken)
		session = domain.NewSession(digest, ipAddress, userAgent)
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, false, err
		}
		s.log.Info("session created",
			slog.String("op", op),
			slog.String("display_name", session.DisplayName),
		)
		return session, true, nil

	default:
		return nil, false, err
	}
}

func (s *SessionService) UpdateNickname(ctx context.Context, session *domain.Session, nickname string) (*domain.Session, error) {
	const op = "service.session.updateNickname"

	if session == nil {
		return nil, errors.New("session is required")
	}

	if err := s.gate.CheckAction(ctx, moderation.ActionNicknameUpdate, session.TokenDigest); err != nil {
		return nil, err
	}

	if err := s.gate.CheckContent(nickname, s.maxNick); err != nil {
		return nil, err
	}
	nickname = s.gate.Sanitize(nickname)
	if nickname == "" {
		return nil, domain.NewValidationError("nickname must not be empty")
	}
	if utf8.RuneCountInString(nickname) > s.maxNick {
		return nil, domain.NewValidationError("nickname exceeds %d characters", s.maxNick)
	}

	session.Nickname = nickname
	session.Touch()
	if err := s.sessions.Update(ctx, session); err != nil {
		s.log.Error("failed to update nickname", slog.String("op", op), sl.Err(err))
		return nil, err
	}

	return session, nil
}

func (s *SessionService) Touch(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	session.Touch()
	if err := s.sessions.Touch(ctx, session.ID, session.UpdatedAt); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SessionService) ExpiresAt(session *domain.Session) time.Time {
	return session.UpdatedAt.Add(s.cfg.TTL)
}
