// Package worker runs the offline re-encryption back-fill, either inline or
// as an asynq worker.
package worker

import (
	"context"
	"errors"

	"chatroom/backend/internal/config"
	"chatroom/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// WorkerServer wraps the asynq server that executes back-fill tasks.
type WorkerServer struct {
	server  *asynq.Server
	handler *ReencryptHandler
	log     *logrus.Entry
}

func NewWorkerServer(redisOpt asynq.RedisClientOpt, b *Backfiller, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: config.WorkerConcurrency,
			Queues: map[string]int{
				"critical":            6,
				"default":             3,
				config.ReencryptQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).WithError(err).Error("Task failed")
			}),
			Logger: logEntry,
		},
	)

	return &WorkerServer{
		server:  server,
		handler: NewReencryptHandler(b, logger),
		log:     logEntry,
	}
}

// Mux returns the task routing used by Start.
func (ws *WorkerServer) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeReencrypt, ws.handler.ProcessTask)
	return mux
}

// Start runs the worker until Shutdown is called.
func (ws *WorkerServer) Start() error {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(ws.Mux()); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return err
	}
	ws.log.Info("Worker server stopped.")
	return nil
}

// Shutdown gracefully stops the worker.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
}
