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

func preloadParticipants(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at asc, user_id asc")
}

// CreateRoom inserts the room and its creator membership in one transaction.
func (s *Service) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(room).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return chaterr.ErrDuplicateRoomName
			}
			return fmt.Errorf("gorm: create room: %w", err)
		}

		creator := models.RoomParticipant{
			RoomID:    room.ID,
			UserID:    room.CreatorID,
			JoinedVia: models.JoinedViaCreation,
			JoinedAt:  room.CreatedAt,
		}
		if err := tx.Create(&creator).Error; err != nil {
			return fmt.Errorf("gorm: add creator to room: %w", err)
		}
		room.Participants = []models.RoomParticipant{creator}
		return nil
	})
	if err != nil {
		return err
	}
	room.SyncParticipantIDs()
	return nil
}

// GetRoomByID loads a room with its participants.
func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).
		Preload("Participants", preloadParticipants).
		Where("id = ?", roomID).
		First(&room).Error
	if err != nil {
		return nil, notFoundAs(err, chaterr.ErrRoomNotFound, "get room")
	}
	room.SyncParticipantIDs()
	return &room, nil
}

// ListRoomsForUser returns every room userID participates in, newest first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	db := s.DB.WithContext(ctx)
	memberOf := db.Model(&models.RoomParticipant{}).Select("room_id").Where("user_id = ?", userID)

	var rooms []models.ChatRoom
	err := db.Preload("Participants", preloadParticipants).
		Where("id IN (?)", memberOf).
		Order("created_at desc").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms for user %s: %w", userID, err)
	}
	for i := range rooms {
		rooms[i].SyncParticipantIDs()
	}
	return rooms, nil
}

func (s *Service) ListRoomIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).Order("created_at asc").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("gorm: list room ids: %w", err)
	}
	return ids, nil
}

// AddParticipant inserts a membership row. It reports false when the user was
// already a participant.
func (s *Service) AddParticipant(ctx context.Context, roomID, userID, via string) (bool, error) {
	p := models.RoomParticipant{
		RoomID:    roomID,
		UserID:    userID,
		JoinedVia: via,
		JoinedAt:  time.Now().UTC(),
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
	if res.Error != nil {
		return false, fmt.Errorf("gorm: add participant: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	err := s.DB.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomParticipant{}).Error
	if err != nil {
		return fmt.Errorf("gorm: remove participant: %w", err)
	}
	return nil
}

// DeleteRoom removes the room together with its invitations, messages and
// memberships. It returns the number of invitations deleted.
func (s *Service) DeleteRoom(ctx context.Context, roomID string) (int64, error) {
	var deletedInvitations int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ?", roomID).Delete(&models.ChatRoomInvitation{})
		if res.Error != nil {
			return fmt.Errorf("gorm: delete invitations: %w", res.Error)
		}
		deletedInvitations = res.RowsAffected

		if err := tx.Where("room_id = ?", roomID).Delete(&models.ChatHistory{}).Error; err != nil {
			return fmt.Errorf("gorm: delete messages: %w", err)
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomParticipant{}).Error; err != nil {
			return fmt.Errorf("gorm: delete participants: %w", err)
		}

		res = tx.Where("id = ?", roomID).Delete(&models.ChatRoom{})
		if res.Error != nil {
			return fmt.Errorf("gorm: delete room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return chaterr.ErrRoomNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deletedInvitations, nil
}
