package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anonroom/anonroom/internal/domain"
)

// In-memory implementations mirror the postgres semantics, kept-filtering
// included. They back the test suite and small single-process deployments.

type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
	digests  map[string]uuid.UUID
}

func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[uuid.UUID]*domain.Session),
		digests:  make(map[string]uuid.UUID),
	}
}

func (r *InMemorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("session is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *session
	r.sessions[cp.ID] = &cp
	r.digests[cp.TokenDigest] = cp.ID
	return nil
}

func (r *InMemorySessionRepository) GetByTokenDigest(ctx context.Context, digest string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.digests[digest]
	if !ok {
		return nil, ErrSessionNotFound
	}
	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	cp := *session
	return &cp, nil
}

func (r *InMemorySessionRepository) Update(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("session is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	cp := *session
	r.sessions[cp.ID] = &cp
	return nil
}

func (r *InMemorySessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.UpdatedAt = at.UTC()
	return nil
}

func (r *InMemorySessionRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, session := range r.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			delete(r.digests, session.TokenDigest)
			deleted++
		}
	}
	return deleted, nil
}

type InMemoryRoomRepository struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*domain.Room
	tokens   map[string]uuid.UUID
	messages *InMemoryMessageRepository
}

// NewInMemoryRoomRepository needs the message repository to compute
// kept-message aggregates and inactivity, matching the SQL joins.
func NewInMemoryRoomRepository(messages *InMemoryMessageRepository) *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms:    make(map[uuid.UUID]*domain.Room),
		tokens:   make(map[string]uuid.UUID),
		messages: messages,
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[room.ShareToken]; ok {
		return ErrShareTokenExists
	}

	cp := *room
	r.rooms[cp.ID] = &cp
	r.tokens[cp.ShareToken] = cp.ID
	return nil
}

func (r *InMemoryRoomRepository) GetByShareToken(ctx context.Context, shareToken string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	id, ok := r.tokens[shareToken]
	room := r.rooms[id]
	r.mu.RUnlock()

	if !ok || room == nil || !room.Kept() {
		return nil, ErrRoomNotFound
	}

	return r.annotate(room), nil
}

func (r *InMemoryRoomRepository) List(ctx context.Context, limit, offset int) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := r.keptRoomsDesc()
	if offset >= len(kept) {
		return []*domain.Room{}, nil
	}
	kept = kept[offset:]
	if limit < len(kept) {
		kept = kept[:limit]
	}
	return kept, nil
}

func (r *InMemoryRoomRepository) ListBefore(ctx context.Context, limit int, before time.Time) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := r.keptRoomsDesc()
	out := make([]*domain.Room, 0, limit)
	for _, room := range kept {
		if !room.CreatedAt.Before(before) {
			continue
		}
		out = append(out, room)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *InMemoryRoomRepository) ListInactive(ctx context.Context, cutoff time.Time) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*domain.Room
	for _, room := range r.keptRoomsDesc() {
		if room.LastActivity.Before(cutoff) {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRoomRepository) DiscardInactive(ctx context.Context, cutoff, at time.Time) (int64, error) {
	inactive, err := r.ListInactive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var discarded int64
	for _, room := range inactive {
		if err := r.Discard(ctx, room.ID, at); err != nil {
			return discarded, err
		}
		discarded++
	}
	return discarded, nil
}

func (r *InMemoryRoomRepository) Discard(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok || !room.Kept() {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	room.Discard(at)
	r.mu.Unlock()

	if r.messages != nil {
		r.messages.discardByRoom(id, at)
	}
	return nil
}

func (r *InMemoryRoomRepository) keptRoomsDesc() []*domain.Room {
	r.mu.RLock()
	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.Kept() {
			rooms = append(rooms, room)
		}
	}
	r.mu.RUnlock()

	out := make([]*domain.Room, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, r.annotate(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// annotate computes kept-message aggregates, the in-memory twin of the
// grouped LEFT JOIN in postgres.go.
func (r *InMemoryRoomRepository) annotate(room *domain.Room) *domain.Room {
	cp := *room
	cp.MessageCount = 0
	cp.ParticipantCount = 0
	cp.LastActivity = cp.CreatedAt

	if r.messages == nil {
		return &cp
	}

	authors := make(map[uuid.UUID]struct{})
	for _, msg := range r.messages.keptByRoom(room.ID) {
		cp.MessageCount++
		authors[msg.SessionID] = struct{}{}
		if msg.CreatedAt.After(cp.LastActivity) {
			cp.LastActivity = msg.CreatedAt
		}
	}
	cp.ParticipantCount = int64(len(authors))
	return &cp
}

type InMemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[uint64]*domain.Message
	nextID   uint64
}

func NewInMemoryMessageRepository() *InMemoryMessageRepository {
	return &InMemoryMessageRepository{
		messages: make(map[uint64]*domain.Message),
		nextID:   1,
	}
}

func (r *InMemoryMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg.ID = r.nextID
	r.nextID++

	cp := *msg
	r.messages[cp.ID] = &cp
	return nil
}

func (r *InMemoryMessageRepository) GetByID(ctx context.Context, id uint64) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id]
	if !ok || !msg.Kept() {
		return nil, ErrMessageNotFound
	}

	cp := *msg
	return &cp, nil
}

func (r *InMemoryMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit int, beforeID uint64) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msgs := r.keptByRoom(roomID)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })

	out := make([]*domain.Message, 0, limit)
	for _, msg := range msgs {
		if beforeID > 0 && msg.ID >= beforeID {
			continue
		}
		cp := *msg
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *InMemoryMessageRepository) Discard(ctx context.Context, id uint64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok || !msg.Kept() {
		return ErrMessageNotFound
	}
	msg.Discard(at)
	return nil
}

func (r *InMemoryMessageRepository) LastByAuthorInRoom(ctx context.Context, roomID, sessionID uuid.UUID) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last *domain.Message
	for _, msg := range r.keptByRoom(roomID) {
		if msg.SessionID != sessionID {
			continue
		}
		if last == nil || msg.CreatedAt.After(last.CreatedAt) {
			last = msg
		}
	}
	if last == nil {
		return nil, ErrMessageNotFound
	}

	cp := *last
	return &cp, nil
}

func (r *InMemoryMessageRepository) CountByAuthorSince(ctx context.Context, sessionID uuid.UUID, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, msg := range r.messages {
		if msg.Kept() && msg.SessionID == sessionID && !msg.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryMessageRepository) keptByRoom(roomID uuid.UUID) []*domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Message
	for _, msg := range r.messages {
		if msg.Kept() && msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out
}

func (r *InMemoryMessageRepository) discardByRoom(roomID uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range r.messages {
		if msg.Kept() && msg.RoomID == roomID {
			msg.Discard(at)
		}
	}
}
