// Package tasks defines the background jobs exchanged through asynq.
package tasks

import (
	"encoding/json"
	"fmt"

	"chatroom/backend/internal/config"

	"github.com/hibiken/asynq"
)

const (
	// TypeReencrypt re-derives ciphertext for a room's degraded messages.
	TypeReencrypt = "chatroom:reencrypt"
)

// ReencryptPayload names the room to back-fill.
type ReencryptPayload struct {
	RoomID string `json:"roomId"`
}

// NewReencryptTask builds a back-fill task for roomID. Tasks for the same room
// share an id, so a room is queued at most once at a time.
func NewReencryptTask(roomID string) (*asynq.Task, error) {
	if roomID == "" {
		return nil, fmt.Errorf("reencrypt task: empty room id")
	}
	payload, err := json.Marshal(ReencryptPayload{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReencrypt, payload,
		asynq.Queue(config.ReencryptQueue),
		asynq.Timeout(config.ReencryptTaskTimeout),
		asynq.TaskID(TypeReencrypt+":"+roomID),
		asynq.MaxRetry(5),
	), nil
}

// ParseReencryptPayload decodes a task payload.
func ParseReencryptPayload(data []byte) (ReencryptPayload, error) {
	var p ReencryptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if p.RoomID == "" {
		return p, fmt.Errorf("missing roomId")
	}
	return p, nil
}
