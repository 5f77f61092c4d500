package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/metrics"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

// Sweeper drives the room lifecycle: Active -> Warned -> Expired. It warns
// rooms approaching the inactivity TTL, soft-deletes rooms past it (messages
// cascade), and garbage-collects idle session rows. Runs periodically, not
// event-driven; every pass is a bounded number of queries.
type Sweeper struct {
	rooms      repository.RoomRepository
	sessions   repository.SessionRepository
	roomTTL    time.Duration
	warnWindow time.Duration
	interval   time.Duration
	sessionTTL time.Duration
	log        *slog.Logger
}

func New(rooms repository.RoomRepository, sessions repository.SessionRepository, lifecycle config.LifecycleConfig, sessionTTL time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		rooms:      rooms,
		sessions:   sessions,
		roomTTL:    lifecycle.RoomTTL,
		warnWindow: lifecycle.WarningWindow,
		interval:   lifecycle.SweepInterval,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", sl.Err(err))
			}
		}
	}
}

// Sweep performs one warn+expire pass. Exported so an external scheduler can
// drive it directly.
func (s *Sweeper) Sweep(ctx context.Context) error {
	const op = "sweeper.sweep"
	log := s.log.With(slog.String("op", op))
	now := time.Now().UTC()

	// Warn first: rooms idle past TTL-warnWindow but not yet expired. The
	// signal is just a log line; repeating it across passes is harmless.
	warnCutoff := now.Add(-(s.roomTTL - s.warnWindow))
	expireCutoff := now.Add(-s.roomTTL)

	toWarn, err := s.rooms.ListInactive(ctx, warnCutoff)
	if err != nil {
		return err
	}
	for _, room := range toWarn {
		if room.LastActivity.Before(expireCutoff) {
			continue // past full TTL, it is expiring below
		}
		log.Info("room nearing expiry",
			slog.String("room_id", room.ID.String()),
			slog.String("name", room.Name),
			slog.Time("last_activity", room.LastActivity),
		)
	}

	discarded, err := s.rooms.DiscardInactive(ctx, expireCutoff, now)
	if err != nil {
		return err
	}
	if discarded > 0 {
		metrics.RoomsDiscardedTotal.Add(float64(discarded))
		log.Info("expired rooms discarded", slog.Int64("count", discarded))
	}

	if s.sessionTTL > 0 {
		deleted, err := s.sessions.DeleteIdleBefore(ctx, now.Add(-s.sessionTTL))
		if err != nil {
			return err
		}
		if deleted > 0 {
			log.Info("idle sessions deleted", slog.Int64("count", deleted))
		}
	}

	return nil
}
