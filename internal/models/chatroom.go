package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// How a participant entered a room.
const (
	JoinedViaCreation   = "created"
	JoinedViaInvitation = "invitation"
	JoinedViaDirectAdd  = "direct"
)

// ChatRoom is a named group chat. Room names are unique per creator.
type ChatRoom struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null;uniqueIndex:idx_creator_room_name" json:"name"`
	CreatorID     string    `gorm:"not null;uniqueIndex:idx_creator_room_name" json:"creatorId"`
	CreatorName   string    `gorm:"not null" json:"creatorName"`
	IsPrivate     bool      `gorm:"not null" json:"isPrivate"`
	LastMessageID *uint     `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Participants   []RoomParticipant `gorm:"foreignKey:RoomID" json:"-"`
	ParticipantIDs []string          `gorm:"-" json:"participantIds"`
}

// BeforeCreate assigns the room id.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// SyncParticipantIDs copies the loaded Participants into ParticipantIDs.
func (r *ChatRoom) SyncParticipantIDs() {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.UserID)
	}
	r.ParticipantIDs = ids
}

// HasParticipant reports whether userID is in the room's membership set.
func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RoomParticipant is one row of the User x Room membership relation.
type RoomParticipant struct {
	RoomID    string    `gorm:"primaryKey"`
	UserID    string    `gorm:"primaryKey;index"`
	JoinedVia string    `gorm:"not null"`
	JoinedAt  time.Time `gorm:"not null"`
}

func (RoomParticipant) TableName() string { return "chat_room_participants" }
