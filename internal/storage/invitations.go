package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) CreateInvitation(ctx context.Context, inv *models.ChatRoomInvitation) error {
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return chaterr.ErrDuplicatePendingInvite
		}
		return fmt.Errorf("gorm: create invitation: %w", err)
	}
	return nil
}

func (s *Service) GetInvitationByID(ctx context.Context, id string) (*models.ChatRoomInvitation, error) {
	var inv models.ChatRoomInvitation
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFoundAs(err, chaterr.ErrInvitationNotFound, "get invitation")
	}
	return &inv, nil
}

func (s *Service) HasPendingInvitation(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.ChatRoomInvitation{}).
		Where("room_id = ? AND invited_user_id = ? AND status = ?", roomID, userID, models.InvitationPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: check pending invitation: %w", err)
	}
	return count > 0, nil
}

// ListPendingInvitations returns PENDING invitations for userID, including
// ones that have expired but were never resolved.
func (s *Service) ListPendingInvitations(ctx context.Context, userID string) ([]models.ChatRoomInvitation, error) {
	var invs []models.ChatRoomInvitation
	err := s.DB.WithContext(ctx).
		Where("invited_user_id = ? AND status = ?", userID, models.InvitationPending).
		Order("invited_at desc").
		Find(&invs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list pending invitations: %w", err)
	}
	return invs, nil
}

// ResolveInvitation moves a still-valid PENDING invitation to status. On
// acceptance the room becomes private and gains the invitee, in the same
// transaction as the status change. It returns the room as updated.
func (s *Service) ResolveInvitation(ctx context.Context, invitationID string, status models.InvitationStatus, now time.Time) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.ChatRoomInvitation
		if err := tx.Where("id = ?", invitationID).First(&inv).Error; err != nil {
			return notFoundAs(err, chaterr.ErrInvitationNotFound, "get invitation")
		}

		// термін перевіряється в Go: SQLite зберігає час як текст
		if !inv.Resolvable(now) {
			return chaterr.ErrInvitationNoLongerValid
		}
		// умовне оновлення: лише поки запрошення ще PENDING
		res := tx.Model(&models.ChatRoomInvitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationPending).
			Updates(map[string]any{"status": status, "responded_at": now})
		if res.Error != nil {
			return fmt.Errorf("gorm: resolve invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return chaterr.ErrInvitationNoLongerValid
		}

		if err := tx.Where("id = ?", inv.RoomID).First(&room).Error; err != nil {
			return notFoundAs(err, chaterr.ErrRoomNotFound, "get room")
		}
		if status != models.InvitationAccepted {
			return nil
		}

		if !room.IsPrivate {
			if err := tx.Model(&room).Update("is_private", true).Error; err != nil {
				return fmt.Errorf("gorm: mark room private: %w", err)
			}
			room.IsPrivate = true
		}
		p := models.RoomParticipant{
			RoomID:    inv.RoomID,
			UserID:    inv.InvitedUserID,
			JoinedVia: models.JoinedViaInvitation,
			JoinedAt:  now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
			return fmt.Errorf("gorm: add invitee to room: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}
