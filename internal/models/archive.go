package models

import "gorm.io/gorm"

// RoomRecord is the durable copy of a ChatRoom's metadata, kept in PostgreSQL
// so room lists survive a restart of the realtime store.
type RoomRecord struct {
	RoomKey string `gorm:"primaryKey"`

	ParticipantAID   string `gorm:"type:text;not null;index"`
	ParticipantAName string
	ParticipantARole string
	ParticipantBID   string `gorm:"type:text;not null;index"`
	ParticipantBName string
	ParticipantBRole string

	LastMessageText     string
	LastMessageSenderID string
	// Millisecond epoch timestamps as assigned by the realtime store.
	LastMessageAt int64
	CreatedAtMs   int64
	UpdatedAtMs   int64
}

// ArchivedMessage is the durable copy of a message. The embedded gorm.Model
// supplies the surrogate primary key; MessageID is the store-assigned id and
// is what upserts key on.
type ArchivedMessage struct {
	gorm.Model

	RoomKey    string `gorm:"type:text;not null;index:idx_room_sent"`
	MessageID  string `gorm:"uniqueIndex;not null"`
	SenderID   string `gorm:"type:text;not null;index"`
	SenderName string
	AvatarRef  string
	Body       string `gorm:"type:text;not null"`
	// SentAt is the store-assigned send time in milliseconds since the epoch.
	SentAt int64 `gorm:"index:idx_room_sent"`
	Read   bool
}
