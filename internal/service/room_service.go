package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anonroom/anonroom/internal/broadcast"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/moderation"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

const (
	defaultRoomLimit = 20
	maxRoomLimit     = 100

	// Bound on retries against the share-token unique constraint. The token
	// space makes repeated collisions astronomically unlikely.
	maxShareTokenAttempts = 10
)

type RoomService struct {
	rooms       repository.RoomRepository
	gate        *moderation.Gate
	broadcaster broadcast.Broadcaster
	maxNameLen  int
	log         *slog.Logger
}

func NewRoomService(rooms repository.RoomRepository, gate *moderation.Gate, broadcaster broadcast.Broadcaster, maxNameLen int, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		rooms:       rooms,
		gate:        gate,
		broadcaster: broadcaster,
		maxNameLen:  maxNameLen,
		log:         log,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, name string, creator *domain.Session) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	if creator == nil {
		return nil, errors.New("creator session is required")
	}

	if err := s.gate.CheckAction(ctx, moderation.ActionRoomCreate, creator.TokenDigest); err != nil {
		return nil, err
	}

	if err := s.gate.CheckContent(name, s.maxNameLen); err != nil {
		return nil, err
	}
	name = s.gate.Sanitize(name)
	if name == "" {
		return nil, domain.NewValidationError("room name must not be empty")
	}

	// Creator identity is always server-derived from the resolved session.
	for attempt := 0; attempt < maxShareTokenAttempts; attempt++ {
		room := domain.NewRoom(name, creator.ID)
		if err := s.rooms.Create(ctx, room); err != nil {
			if errors.Is(err, repository.ErrShareTokenExists) {
				continue
			}
			return nil, err
		}
		log.Info("room created",
			slog.String("share_token", room.ShareToken),
			slog.String("room_id", room.ID.String()),
		)
		return room, nil
	}

	return nil, errors.New("could not allocate a unique share token")
}

func (s *RoomService) GetRoom(ctx context.Context, shareToken string) (*domain.Room, error) {
	return s.rooms.GetByShareToken(ctx, shareToken)
}

func (s *RoomService) ListRooms(ctx context.Context, limit, offset int) ([]*domain.Room, bool, error) {
	limit = clampLimit(limit, defaultRoomLimit, maxRoomLimit)
	if offset < 0 {
		offset = 0
	}

	rooms, err := s.rooms.List(ctx, limit+1, offset)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(rooms) > limit
	if hasMore {
		rooms = rooms[:limit]
	}
	return rooms, hasMore, nil
}

func (s *RoomService) ListRoomsBefore(ctx context.Context, limit int, cursor time.Time) ([]*domain.Room, bool, time.Time, error) {
	limit = clampLimit(limit, defaultRoomLimit, maxRoomLimit)
	if cursor.IsZero() {
		cursor = time.Now().UTC().Add(time.Minute)
	}

	rooms, err := s.rooms.ListBefore(ctx, limit+1, cursor)
	if err != nil {
		return nil, false, time.Time{}, err
	}

	hasMore := len(rooms) > limit
	if hasMore {
		rooms = rooms[:limit]
	}

	var next time.Time
	if len(rooms) > 0 {
		next = rooms[len(rooms)-1].CreatedAt
	}
	return rooms, hasMore, next, nil
}

// Subscribe attaches a realtime subscriber to the room's channel. Unknown or
// discarded rooms reject the subscription.
func (s *RoomService) Subscribe(ctx context.Context, shareToken string) (*broadcast.Subscription, error) {
	room, err := s.rooms.GetByShareToken(ctx, shareToken)
	if err != nil {
		return nil, err
	}
	return s.broadcaster.Subscribe(domain.RoomChannel(room.ShareToken)), nil
}

// Discard soft-deletes a room out of band (moderation action).
func (s *RoomService) Discard(ctx context.Context, id uuid.UUID) error {
	if err := s.rooms.Discard(ctx, id, time.Now().UTC()); err != nil {
		s.log.Error("failed to discard room", slog.String("room_id", id.String()), sl.Err(err))
		return err
	}
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
