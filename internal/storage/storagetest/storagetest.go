// Package storagetest opens throwaway SQLite-backed stores for tests.
package storagetest

import (
	"context"
	"io"
	"testing"

	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// New returns a migrated in-memory store that is closed with the test.
func New(t testing.TB) *storage.Service {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := storage.Open("sqlite://file::memory:", log)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return storage.NewStorageService(db)
}

// SeedUser stores a user and returns it.
func SeedUser(t testing.TB, s *storage.Service, id, name, email string) *models.User {
	t.Helper()
	u := &models.User{ID: id, DisplayName: name, Email: email}
	require.NoError(t, s.SaveUser(context.Background(), u))
	return u
}
