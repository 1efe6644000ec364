package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRejected InvitationStatus = "REJECTED"
)

// ChatRoomInvitation is an offer for a user to join a room.
// At most one PENDING row may exist per (room, invited user).
type ChatRoomInvitation struct {
	ID              string           `gorm:"primaryKey" json:"id"`
	RoomID          string           `gorm:"not null;index;uniqueIndex:idx_pending_invitation,where:status = 'PENDING'" json:"chatRoomId"`
	InvitedByUserID string           `gorm:"not null" json:"invitedBy"`
	InvitedUserID   string           `gorm:"not null;index;uniqueIndex:idx_pending_invitation,where:status = 'PENDING'" json:"invitedUser"`
	Status          InvitationStatus `gorm:"not null;index" json:"status"`
	InvitedAt       time.Time        `gorm:"not null" json:"invitedAt"`
	ExpiresAt       time.Time        `gorm:"not null" json:"expiresAt"`
	RespondedAt     *time.Time       `json:"respondedAt,omitempty"`
}

func (i *ChatRoomInvitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// Resolvable reports whether the invitation can still be accepted or rejected.
// Expiry is evaluated lazily against now.
func (i *ChatRoomInvitation) Resolvable(now time.Time) bool {
	return i.Status == InvitationPending && !now.After(i.ExpiresAt)
}

// PendingInvitation is an invitation with its room and inviter resolved.
type PendingInvitation struct {
	ID        string      `json:"id"`
	ChatRoom  RoomSummary `json:"chatRoom"`
	InvitedBy UserSummary `json:"invitedBy"`
	Status    string      `json:"status"`
	InvitedAt time.Time   `json:"invitedAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type RoomSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}
