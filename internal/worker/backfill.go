package worker

import (
	"context"

	"chatroom/backend/internal/config"
	"chatroom/backend/internal/encryption"
	"chatroom/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// MessageStore is what back-filling needs from the store.
type MessageStore interface {
	ListRoomIDs(ctx context.Context) ([]string, error)
	UnencryptedMessages(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error)
	MarkMessageEncrypted(ctx context.Context, id uint, envelope string) error
}

// BackfillResult summarises one room's pass.
type BackfillResult struct {
	RoomID    string
	Scanned   int
	Encrypted int
	Failed    int
}

// Backfiller encrypts messages that were stored in degraded (plaintext) mode.
type Backfiller struct {
	Store  MessageStore
	Cipher encryption.Cipher
	// Limit caps how many messages are considered per room.
	Limit int

	log *logrus.Entry
}

func NewBackfiller(store MessageStore, cipher encryption.Cipher, limit int, logger *logrus.Logger) *Backfiller {
	if limit <= 0 {
		limit = config.DefaultMessageRetention
	}
	return &Backfiller{
		Store:  store,
		Cipher: cipher,
		Limit:  limit,
		log:    logger.WithField("component", "backfill"),
	}
}

// BackfillRoom encrypts up to Limit of the room's newest plaintext messages.
// A message that still fails to encrypt is counted and left as it is.
func (b *Backfiller) BackfillRoom(ctx context.Context, roomID string) (BackfillResult, error) {
	res := BackfillResult{RoomID: roomID}
	logCtx := b.log.WithField("room_id", roomID)

	rows, err := b.Store.UnencryptedMessages(ctx, roomID, b.Limit)
	if err != nil {
		return res, err
	}
	res.Scanned = len(rows)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		envelope, err := b.Cipher.Encrypt(row.Content)
		if err != nil {
			logCtx.WithError(err).WithField("message_id", row.ID).Warn("Message still cannot be encrypted")
			res.Failed++
			continue
		}
		if err := b.Store.MarkMessageEncrypted(ctx, row.ID, envelope); err != nil {
			return res, err
		}
		res.Encrypted++
	}

	logCtx.WithFields(logrus.Fields{
		"scanned":   res.Scanned,
		"encrypted": res.Encrypted,
		"failed":    res.Failed,
	}).Info("Room back-fill finished")
	return res, nil
}

// BackfillAll runs BackfillRoom for every room.
func (b *Backfiller) BackfillAll(ctx context.Context) ([]BackfillResult, error) {
	ids, err := b.Store.ListRoomIDs(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]BackfillResult, 0, len(ids))
	for _, id := range ids {
		res, err := b.BackfillRoom(ctx, id)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
