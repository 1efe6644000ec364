package storage

import (
	"context"
	"fmt"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/models"

	"gorm.io/gorm"
)

// AppendMessage stores msg, prunes the room down to retention messages
// (oldest first) and points the room's last message at msg, all in one
// transaction. A room deleted underneath the write yields ErrRoomNotFound.
func (s *Service) AppendMessage(ctx context.Context, msg *models.ChatHistory, retention int) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("gorm: create message: %w", err)
		}

		if retention > 0 {
			if err := pruneRoom(tx, msg.RoomID, retention); err != nil {
				return err
			}
		}

		res := tx.Model(&models.ChatRoom{}).
			Where("id = ?", msg.RoomID).
			Update("last_message_id", msg.ID)
		if res.Error != nil {
			return fmt.Errorf("gorm: update last message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return chaterr.ErrRoomNotFound
		}
		return nil
	})
}

func pruneRoom(tx *gorm.DB, roomID string, retention int) error {
	var count int64
	if err := tx.Model(&models.ChatHistory{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return fmt.Errorf("gorm: count messages: %w", err)
	}
	excess := int(count) - retention
	if excess <= 0 {
		return nil
	}

	var ids []uint
	err := tx.Model(&models.ChatHistory{}).
		Where("room_id = ?", roomID).
		Order("created_at asc, id asc").
		Limit(excess).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("gorm: select pruned messages: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.ChatHistory{}).Error; err != nil {
		return fmt.Errorf("gorm: prune messages: %w", err)
	}
	return nil
}

// RecentMessages returns the newest limit messages of a room in ascending
// order.
func (s *Service) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error) {
	var history []models.ChatHistory
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: recent messages for room %s: %w", roomID, err)
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// ClearMessages deletes every message of a room and resets its last message.
func (s *Service) ClearMessages(ctx context.Context, roomID string) (int64, error) {
	var deleted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ?", roomID).Delete(&models.ChatHistory{})
		if res.Error != nil {
			return fmt.Errorf("gorm: clear messages: %w", res.Error)
		}
		deleted = res.RowsAffected

		return tx.Model(&models.ChatRoom{}).
			Where("id = ?", roomID).
			Update("last_message_id", nil).Error
	})
	return deleted, err
}

// UnencryptedMessages returns up to limit degraded messages of a room, newest
// first.
func (s *Service) UnencryptedMessages(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error) {
	var history []models.ChatHistory
	err := s.DB.WithContext(ctx).
		Where("room_id = ? AND encrypted = ?", roomID, false).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: unencrypted messages for room %s: %w", roomID, err)
	}
	return history, nil
}

// MarkMessageEncrypted stores envelope for a degraded message and drops its
// plaintext. Messages that were encrypted in the meantime are left alone.
func (s *Service) MarkMessageEncrypted(ctx context.Context, id uint, envelope string) error {
	err := s.DB.WithContext(ctx).
		Model(&models.ChatHistory{}).
		Where("id = ? AND encrypted = ?", id, false).
		Updates(map[string]any{
			"encrypted_content": envelope,
			"content":           "",
			"encrypted":         true,
		}).Error
	if err != nil {
		return fmt.Errorf("gorm: mark message %d encrypted: %w", id, err)
	}
	return nil
}
