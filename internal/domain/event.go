package domain

import "time"

const (
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
)

// Event is a realtime notification published on a room channel. Delivery is
// best-effort and at-most-once; clients refetch history on (re)connect.
type Event struct {
	Type      string        `json:"type"`
	Message   *EventMessage `json:"message,omitempty"`
	MessageID uint64        `json:"message_id,omitempty"`
}

// EventMessage is the wire shape of a message inside a new-message event.
type EventMessage struct {
	ID        uint64    `json:"id"`
	RoomID    string    `json:"room_id"`
	TextBody  string    `json:"text_body"`
	User      EventUser `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type EventUser struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
}

// NewMessageEvent wraps a persisted message for broadcast.
func NewMessageEvent(msg *Message) Event {
	return Event{
		Type: EventNewMessage,
		Message: &EventMessage{
			ID:       msg.ID,
			RoomID:   msg.RoomID.String(),
			TextBody: msg.TextBody,
			User: EventUser{
				DisplayName: msg.AuthorDisplayName,
				Nickname:    msg.AuthorNickname,
			},
			CreatedAt: msg.CreatedAt,
		},
	}
}

// MessageDeletedEvent announces a soft-deleted message.
func MessageDeletedEvent(messageID uint64) Event {
	return Event{
		Type:      EventMessageDeleted,
		MessageID: messageID,
	}
}
