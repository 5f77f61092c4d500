package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anonroom/anonroom/internal/broadcast"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/metrics"
	"github.com/anonroom/anonroom/internal/moderation"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/lib/logger/sl"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

type MessageService struct {
	rooms       repository.RoomRepository
	messages    repository.MessageRepository
	gate        *moderation.Gate
	broadcaster broadcast.Broadcaster
	maxBodyLen  int
	log         *slog.Logger
}

func NewMessageService(rooms repository.RoomRepository, messages repository.MessageRepository, gate *moderation.Gate, broadcaster broadcast.Broadcaster, maxBodyLen int, log *slog.Logger) *MessageService {
	if log == nil {
		log = slog.Default()
	}
	return &MessageService{
		rooms:       rooms,
		messages:    messages,
		gate:        gate,
		broadcaster: broadcaster,
		maxBodyLen:  maxBodyLen,
		log:         log,
	}
}

// CreateMessage runs the full moderate-persist-publish pipeline. Any
// rejection short-circuits before persistence; the broadcast happens only
// after the write committed and never affects its outcome.
func (s *MessageService) CreateMessage(ctx context.Context, shareToken string, author *domain.Session, textBody string) (*domain.Message, error) {
	const op = "service.message.create"
	log := s.log.With(slog.String("op", op), slog.String("share_token", shareToken))

	if author == nil {
		return nil, errors.New("author session is required")
	}

	room, err := s.rooms.GetByShareToken(ctx, shareToken)
	if err != nil {
		return nil, err
	}

	// content checks run on the raw input, before tags are stripped away
	if err := s.gate.CheckContent(textBody, s.maxBodyLen); err != nil {
		return nil, err
	}
	textBody = s.gate.Sanitize(textBody)
	if textBody == "" {
		return nil, domain.NewValidationError("message must not be empty")
	}

	if err := s.gate.CheckMessageVelocity(ctx, author, room.ID); err != nil {
		return nil, err
	}

	msg := domain.NewMessage(room.ID, author, textBody)
	if err := s.messages.Create(ctx, msg); err != nil {
		log.Error("failed to persist message", sl.Err(err))
		return nil, err
	}
	metrics.MessagesCreatedTotal.Inc()

	// The write is durable; notify subscribers even if the request context
	// is already gone. Publish failure is invisible to the caller.
	s.broadcaster.Publish(domain.RoomChannel(room.ShareToken), domain.NewMessageEvent(msg))

	return msg, nil
}

func (s *MessageService) ListMessages(ctx context.Context, shareToken string, limit int, beforeID uint64) ([]*domain.Message, bool, uint64, error) {
	room, err := s.rooms.GetByShareToken(ctx, shareToken)
	if err != nil {
		return nil, false, 0, err
	}

	limit = clampLimit(limit, defaultMessageLimit, maxMessageLimit)

	msgs, err := s.messages.ListByRoom(ctx, room.ID, limit, beforeID)
	if err != nil {
		return nil, false, 0, err
	}

	hasMore := len(msgs) == limit
	var nextBefore uint64
	if len(msgs) > 0 {
		// msgs is newest-first; the oldest id is the next page's cursor
		nextBefore = msgs[len(msgs)-1].ID
	}

	// reverse into ascending order for display
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, hasMore, nextBefore, nil
}

// DiscardMessage soft-deletes a message if and only if the requesting session
// authored it. The event is published only after the delete committed.
func (s *MessageService) DiscardMessage(ctx context.Context, shareToken string, messageID uint64, requester *domain.Session) error {
	const op = "service.message.discard"

	if requester == nil {
		return errors.New("requesting session is required")
	}

	room, err := s.rooms.GetByShareToken(ctx, shareToken)
	if err != nil {
		return err
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != room.ID {
		return repository.ErrMessageNotFound
	}
	if !msg.AuthoredBy(requester.ID) {
		s.log.Warn("discard denied",
			slog.String("op", op),
			slog.Uint64("message_id", messageID),
			slog.String("actor", requester.TokenDigest),
		)
		return domain.ErrForbidden
	}

	if err := s.messages.Discard(ctx, messageID, time.Now().UTC()); err != nil {
		return err
	}

	s.broadcaster.Publish(domain.RoomChannel(room.ShareToken), domain.MessageDeletedEvent(messageID))

	return nil
}
