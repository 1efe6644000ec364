package storage

import (
	"context"
	"fmt"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/models"
)

// SaveUser upserts a user. Emails are stored normalized.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	if err := s.DB.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("gorm: save user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFoundAs(err, chaterr.ErrUserNotFound, "get user")
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).
		Where("email = ?", models.NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, notFoundAs(err, chaterr.ErrUserNotFound, "get user by email")
	}
	return &user, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("gorm: get users: %w", err)
	}
	return users, nil
}
