package worker

import (
	"context"
	"fmt"

	"chatroom/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// ReencryptHandler processes tasks.TypeReencrypt.
type ReencryptHandler struct {
	backfiller *Backfiller
	log        *logrus.Entry
}

func NewReencryptHandler(b *Backfiller, logger *logrus.Logger) *ReencryptHandler {
	return &ReencryptHandler{backfiller: b, log: logger.WithField("component", "reencrypt_handler")}
}

// ProcessTask implements asynq.Handler.
func (h *ReencryptHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	retry, _ := asynq.GetRetryCount(ctx)
	logCtx := h.log.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     retry,
	})

	payload, err := tasks.ParseReencryptPayload(t.Payload())
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("invalid reencrypt payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := h.backfiller.BackfillRoom(ctx, payload.RoomID)
	if err != nil {
		logCtx.WithError(err).WithField("room_id", payload.RoomID).Error("Back-fill failed")
		return fmt.Errorf("backfill room %s: %w", payload.RoomID, err)
	}
	if res.Failed > 0 {
		// retried later; the cipher may recover
		return fmt.Errorf("backfill room %s: %d messages still unencrypted", payload.RoomID, res.Failed)
	}
	return nil
}
