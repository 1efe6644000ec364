package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatroom/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the persistence contract for users, rooms, messages and
// invitations. Methods do not take the room lock themselves; callers that
// mutate a room hold LockRoom around the whole read-check-write sequence.
type Storage interface {
	LockRoom(roomID string) (unlock func())

	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)

	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
	ListRoomIDs(ctx context.Context) ([]string, error)
	AddParticipant(ctx context.Context, roomID, userID, via string) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	DeleteRoom(ctx context.Context, roomID string) (int64, error)

	AppendMessage(ctx context.Context, msg *models.ChatHistory, retention int) error
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error)
	ClearMessages(ctx context.Context, roomID string) (int64, error)
	UnencryptedMessages(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error)
	MarkMessageEncrypted(ctx context.Context, id uint, envelope string) error

	CreateInvitation(ctx context.Context, inv *models.ChatRoomInvitation) error
	GetInvitationByID(ctx context.Context, id string) (*models.ChatRoomInvitation, error)
	HasPendingInvitation(ctx context.Context, roomID, userID string) (bool, error)
	ListPendingInvitations(ctx context.Context, userID string) ([]models.ChatRoomInvitation, error)
	ResolveInvitation(ctx context.Context, invitationID string, status models.InvitationStatus, now time.Time) (*models.ChatRoom, error)
}

// Service is the gorm-backed Storage.
type Service struct {
	DB *gorm.DB

	locks *roomLocks
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{
		DB:    db,
		locks: newRoomLocks(),
	}
}

var _ Storage = (*Service)(nil)

// Open connects to the database named by dsn. A "sqlite://" prefix selects
// SQLite (tests and local runs); anything else is a PostgreSQL DSN.
func Open(dsn string, log *logrus.Logger) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		isSQLite  bool
	)
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		dialector = sqlite.Open(path)
		isSQLite = true
	} else {
		dialector = postgres.Open(dsn)
	}

	gormLogger := logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm: underlying sql.DB: %w", err)
	}
	if isSQLite {
		// одне з'єднання: in-memory база живе лише в ньому
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.RoomParticipant{},
		&models.ChatHistory{},
		&models.ChatRoomInvitation{},
	)
}

// LockRoom serializes mutations of one room within this process.
func (s *Service) LockRoom(roomID string) func() {
	return s.locks.lock(roomID)
}

// notFoundAs maps gorm.ErrRecordNotFound to the given domain error and wraps
// everything else.
func notFoundAs(err error, notFound error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("gorm: %s: %w", op, err)
}
