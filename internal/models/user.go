package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the externally managed account a room or message refers to.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"not null" json:"name"`
}

// BeforeCreate є хуком GORM, який викликається перед створенням запису.
// Він генерує новий UUID для користувача, якщо ID ще не встановлено,
// і нормалізує email.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = NormalizeEmail(u.Email)
	return
}

// Summary returns the public projection of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.DisplayName, Email: u.Email}
}

// UserSummary is what the API exposes about a user.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// NormalizeEmail trims and lower-cases an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
