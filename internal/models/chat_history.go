package models

import "time"

// ChatHistory represents a stored chat message.
// EncryptedContent holds the cipher envelope; Content is only populated for
// degraded rows that could not be encrypted (Encrypted == false).
type ChatHistory struct {
	ID uint `gorm:"primaryKey"`

	// RoomID is the identifier of the chat room where the message was sent.
	RoomID string `gorm:"not null;index:idx_room_created,priority:1"`
	// SenderID is the user who sent the message.
	SenderID string `gorm:"not null;index"`
	// SenderName is the sender's display name at send time.
	SenderName string `gorm:"not null"`

	Content          string `gorm:"type:text"`
	EncryptedContent string `gorm:"type:text"`
	Encrypted        bool   `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;index:idx_room_created,priority:2"`
}

func (ChatHistory) TableName() string { return "chat_messages" }

// Degraded reports whether the row is stored as plaintext.
func (h *ChatHistory) Degraded() bool { return !h.Encrypted }
