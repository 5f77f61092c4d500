package converter

import (
	"time"

	"github.com/google/uuid"

	"github.com/anonroom/anonroom/internal/domain"
)

type SessionResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Nickname    string    `json:"nickname"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func SessionToAPI(s *domain.Session, expiresAt time.Time) *SessionResponse {
	return &SessionResponse{
		ID:          s.ID,
		DisplayName: s.DisplayName,
		Nickname:    s.Nickname,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		ExpiresAt:   expiresAt,
	}
}

type RoomResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	ShareToken       string     `json:"share_token"`
	CreatorSessionID *uuid.UUID `json:"creator_session_id"`
	MessageCount     int64      `json:"message_count"`
	ParticipantCount int64      `json:"participant_count"`
	LastActivity     time.Time  `json:"last_activity"`
	CreatedAt        time.Time  `json:"created_at"`
}

func RoomToAPI(r *domain.Room) *RoomResponse {
	resp := &RoomResponse{
		ID:               r.ID,
		Name:             r.Name,
		ShareToken:       r.ShareToken,
		MessageCount:     r.MessageCount,
		ParticipantCount: r.ParticipantCount,
		LastActivity:     r.LastActivity,
		CreatedAt:        r.CreatedAt,
	}
	if r.CreatorSessionID != uuid.Nil {
		id := r.CreatorSessionID
		resp.CreatorSessionID = &id
	}
	return resp
}

func RoomsToAPI(rooms []*domain.Room) []*RoomResponse {
	out := make([]*RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomToAPI(r))
	}
	return out
}

type MessageUser struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
}

type MessageResponse struct {
	ID        uint64      `json:"id"`
	RoomID    uuid.UUID   `json:"room_id"`
	TextBody  string      `json:"text_body"`
	User      MessageUser `json:"user"`
	IsOwn     bool        `json:"is_own"`
	CreatedAt time.Time   `json:"created_at"`
}

// MessageToAPI renders a message with the author snapshot taken at send time
// and ownership relative to the requesting session.
func MessageToAPI(m *domain.Message, requester *domain.Session) *MessageResponse {
	isOwn := requester != nil && m.AuthoredBy(requester.ID)
	return &MessageResponse{
		ID:       m.ID,
		RoomID:   m.RoomID,
		TextBody: m.TextBody,
		User: MessageUser{
			DisplayName: m.AuthorDisplayName,
			Nickname:    m.AuthorNickname,
		},
		IsOwn:     isOwn,
		CreatedAt: m.CreatedAt,
	}
}

func MessagesToAPI(msgs []*domain.Message, requester *domain.Session) []*MessageResponse {
	out := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageToAPI(m, requester))
	}
	return out
}
