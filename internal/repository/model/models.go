package model

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TokenDigest string    `gorm:"size:64;uniqueIndex;not null"`
	DisplayName string    `gorm:"size:16;not null"`
	Nickname    string    `gorm:"size:32"`
	IPAddress   string    `gorm:"size:45"`
	UserAgent   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"index;not null"`
}

type Room struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name             string     `gorm:"size:100;not null"`
	ShareToken       string     `gorm:"size:64;uniqueIndex;not null"`
	CreatorSessionID *uuid.UUID `gorm:"type:uuid;index"`
	DiscardedAt      *time.Time `gorm:"index"`
	CreatedAt        time.Time  `gorm:"index;not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

type Message struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement"`
	RoomID            uuid.UUID  `gorm:"type:uuid;index:idx_messages_room_created,priority:1;not null"`
	SessionID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	TextBody          string     `gorm:"type:text;not null"`
	AuthorDisplayName string     `gorm:"size:16;not null"`
	AuthorNickname    string     `gorm:"size:32"`
	DiscardedAt       *time.Time `gorm:"index"`
	CreatedAt         time.Time  `gorm:"index:idx_messages_room_created,priority:2;not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}
