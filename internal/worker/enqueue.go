package worker

import (
	"context"
	"errors"
	"time"

	"chatroom/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Enqueuer schedules back-fill tasks.
type Enqueuer struct {
	client *asynq.Client
	log    *logrus.Entry
}

func NewEnqueuer(redisOpt asynq.RedisClientOpt, logger *logrus.Logger) *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(redisOpt),
		log:    logger.WithField("component", "enqueuer"),
	}
}

// EnqueueReencrypt queues a back-fill for roomID. A task already waiting for
// the same room is not an error.
func (e *Enqueuer) EnqueueReencrypt(ctx context.Context, roomID string) error {
	task, err := tasks.NewReencryptTask(roomID)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"task_id": info.ID, "queue": info.Queue, "room_id": roomID}).Info("Back-fill task enqueued")
	return nil
}

const notifyTimeout = 2 * time.Second

// NotifyDegraded is a best-effort EnqueueReencrypt, suitable as the chatroom
// service's OnDegraded hook.
func (e *Enqueuer) NotifyDegraded(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := e.EnqueueReencrypt(ctx, roomID); err != nil {
		e.log.WithError(err).WithField("room_id", roomID).Warn("Failed to enqueue back-fill task")
	}
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
