package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/repository/model"
)

type PostgresSessionRepository struct {
	db *gorm.DB
}

func NewPostgresSessionRepository(db *gorm.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("session is nil")
	}

	return r.db.WithContext(ctx).Create(toModelSession(session)).Error
}

func (r *PostgresSessionRepository) GetByTokenDigest(ctx context.Context, digest string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var session model.Session
	err := r.db.WithContext(ctx).First(&session, "token_digest = ?", digest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return toDomainSession(&session), nil
}

func (r *PostgresSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("session is nil")
	}

	res := r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", session.ID).Updates(map[string]any{
		"nickname":   session.Nickname,
		"ip_address": session.IPAddress,
		"user_agent": session.UserAgent,
		"updated_at": session.UpdatedAt.UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).
		Update("updated_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).Where("updated_at < ?", cutoff.UTC()).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

// roomRow carries a room row together with its kept-message aggregates.
type roomRow struct {
	ID               uuid.UUID
	Name             string
	ShareToken       string
	CreatorSessionID *uuid.UUID
	DiscardedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	MessageCount     int64
	ParticipantCount int64
	LastActivity     time.Time
}

const roomAggregateSelect = `rooms.id, rooms.name, rooms.share_token, rooms.creator_session_id,
	rooms.discarded_at, rooms.created_at, rooms.updated_at,
	COUNT(messages.id) AS message_count,
	COUNT(DISTINCT messages.session_id) AS participant_count,
	COALESCE(MAX(messages.created_at), rooms.created_at) AS last_activity`

func (r *PostgresRoomRepository) aggregated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Select(roomAggregateSelect).
		Joins("LEFT JOIN messages ON messages.room_id = rooms.id AND messages.discarded_at IS NULL").
		Where("rooms.discarded_at IS NULL").
		Group("rooms.id")
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelRoom(room)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrShareTokenExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) GetByShareToken(ctx context.Context, shareToken string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var row roomRow
	err := r.aggregated(ctx).
		Where("rooms.share_token = ?", shareToken).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return rowToDomainRoom(&row), nil
}

func (r *PostgresRoomRepository) List(ctx context.Context, limit, offset int) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []roomRow
	err := r.aggregated(ctx).
		Order("rooms.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rowsToDomainRooms(rows), nil
}

func (r *PostgresRoomRepository) ListBefore(ctx context.Context, limit int, before time.Time) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []roomRow
	err := r.aggregated(ctx).
		Where("rooms.created_at < ?", before.UTC()).
		Order("rooms.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rowsToDomainRooms(rows), nil
}

func (r *PostgresRoomRepository) ListInactive(ctx context.Context, cutoff time.Time) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []roomRow
	err := r.aggregated(ctx).
		Having("COALESCE(MAX(messages.created_at), rooms.created_at) < ?", cutoff.UTC()).
		Order("rooms.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rowsToDomainRooms(rows), nil
}

func (r *PostgresRoomRepository) DiscardInactive(ctx context.Context, cutoff, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var discarded int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`UPDATE rooms SET discarded_at = ?, updated_at = ?
			WHERE discarded_at IS NULL AND id IN (
				SELECT rooms.id FROM rooms
				LEFT JOIN messages ON messages.room_id = rooms.id AND messages.discarded_at IS NULL
				WHERE rooms.discarded_at IS NULL
				GROUP BY rooms.id
				HAVING COALESCE(MAX(messages.created_at), rooms.created_at) < ?
			)`, at.UTC(), at.UTC(), cutoff.UTC())
		if res.Error != nil {
			return res.Error
		}
		discarded = res.RowsAffected

		return tx.Exec(`UPDATE messages SET discarded_at = ?, updated_at = ?
			WHERE discarded_at IS NULL AND room_id IN (
				SELECT id FROM rooms WHERE discarded_at = ?
			)`, at.UTC(), at.UTC(), at.UTC()).Error
	})
	if err != nil {
		return 0, err
	}

	return discarded, nil
}

func (r *PostgresRoomRepository) Discard(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Room{}).
			Where("id = ? AND discarded_at IS NULL", id).
			Updates(map[string]any{"discarded_at": at.UTC(), "updated_at": at.UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}

		return tx.Model(&model.Message{}).
			Where("room_id = ? AND discarded_at IS NULL", id).
			Updates(map[string]any{"discarded_at": at.UTC(), "updated_at": at.UTC()}).Error
	})
}

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewPostgresMessageRepository(db *gorm.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is nil")
	}

	m := toModelMessage(msg)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	msg.ID = m.ID
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uint64) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msg model.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ? AND discarded_at IS NULL", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return toDomainMessage(&msg), nil
}

func (r *PostgresMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit int, beforeID uint64) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("room_id = ? AND discarded_at IS NULL", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []model.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Message, 0, len(msgs))
	for i := range msgs {
		result = append(result, toDomainMessage(&msgs[i]))
	}
	return result, nil
}

func (r *PostgresMessageRepository) Discard(ctx context.Context, id uint64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND discarded_at IS NULL", id).
		Updates(map[string]any{"discarded_at": at.UTC(), "updated_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) LastByAuthorInRoom(ctx context.Context, roomID, sessionID uuid.UUID) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msg model.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND session_id = ? AND discarded_at IS NULL", roomID, sessionID).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return toDomainMessage(&msg), nil
}

func (r *PostgresMessageRepository) CountByAuthorSince(ctx context.Context, sessionID uuid.UUID, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("session_id = ? AND discarded_at IS NULL AND created_at >= ?", sessionID, since.UTC()).
		Count(&count).Error
	return count, err
}

func toModelSession(s *domain.Session) *model.Session {
	return &model.Session{
		ID:          s.ID,
		TokenDigest: s.TokenDigest,
		DisplayName: s.DisplayName,
		Nickname:    s.Nickname,
		IPAddress:   s.IPAddress,
		UserAgent:   s.UserAgent,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func toDomainSession(s *model.Session) *domain.Session {
	return &domain.Session{
		ID:          s.ID,
		TokenDigest: s.TokenDigest,
		DisplayName: s.DisplayName,
		Nickname:    s.Nickname,
		IPAddress:   s.IPAddress,
		UserAgent:   s.UserAgent,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func toModelRoom(r *domain.Room) *model.Room {
	var creator *uuid.UUID
	if r.CreatorSessionID != uuid.Nil {
		id := r.CreatorSessionID
		creator = &id
	}
	var discardedAt *time.Time
	if !r.DiscardedAt.IsZero() {
		t := r.DiscardedAt.UTC()
		discardedAt = &t
	}
	return &model.Room{
		ID:               r.ID,
		Name:             r.Name,
		ShareToken:       r.ShareToken,
		CreatorSessionID: creator,
		DiscardedAt:      discardedAt,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func rowToDomainRoom(row *roomRow) *domain.Room {
	room := &domain.Room{
		ID:               row.ID,
		Name:             row.Name,
		ShareToken:       row.ShareToken,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		MessageCount:     row.MessageCount,
		ParticipantCount: row.ParticipantCount,
		LastActivity:     row.LastActivity.UTC(),
	}
	if row.CreatorSessionID != nil {
		room.CreatorSessionID = *row.CreatorSessionID
	}
	if row.DiscardedAt != nil {
		room.DiscardedAt = row.DiscardedAt.UTC()
	}
	return room
}

func rowsToDomainRooms(rows []roomRow) []*domain.Room {
	result := make([]*domain.Room, 0, len(rows))
	for i := range rows {
		result = append(result, rowToDomainRoom(&rows[i]))
	}
	return result
}

func toModelMessage(m *domain.Message) *model.Message {
	var discardedAt *time.Time
	if !m.DiscardedAt.IsZero() {
		t := m.DiscardedAt.UTC()
		discardedAt = &t
	}
	return &model.Message{
		ID:                m.ID,
		RoomID:            m.RoomID,
		SessionID:         m.SessionID,
		TextBody:          m.TextBody,
		AuthorDisplayName: m.AuthorDisplayName,
		AuthorNickname:    m.AuthorNickname,
		DiscardedAt:       discardedAt,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func toDomainMessage(m *model.Message) *domain.Message {
	msg := &domain.Message{
		ID:                m.ID,
		RoomID:            m.RoomID,
		SessionID:         m.SessionID,
		TextBody:          m.TextBody,
		AuthorDisplayName: m.AuthorDisplayName,
		AuthorNickname:    m.AuthorNickname,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
	if m.DiscardedAt != nil {
		msg.DiscardedAt = m.DiscardedAt.UTC()
	}
	return msg
}
