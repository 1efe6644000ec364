package models

import (
	"encoding/json"
	"time"
)

// ChatMessage is a message as delivered to clients: decrypted, with sender
// metadata attached.
type ChatMessage struct {
	ID        uint        `json:"id"`
	RoomID    string      `json:"roomId"`
	Sender    UserSummary `json:"sender"`
	Content   string      `json:"content"`
	Encrypted bool        `json:"encrypted"`
	// Redacted is set when the stored body could not be decrypted.
	Redacted  bool      `json:"redacted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Realtime event names.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"

	EventRoomMembersUpdate = "room_members_update"
	EventRecentMessages    = "recent_messages"
	EventJoinRoomError     = "join_room_error"
	EventReceiveMessage    = "receive_message"
	EventMessageError      = "message_error"
	EventAuthError         = "auth_error"
	EventError             = "error"
)

// ClientEvent is a frame received from a socket: {"event": ..., "data": {...}}.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is a frame written to a socket.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type SendMessageRequest struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	SenderID string `json:"senderId"`
}

type RoomMembersUpdate struct {
	RoomID      string        `json:"roomId"`
	MemberCount int           `json:"memberCount"`
	Members     []UserSummary `json:"members,omitempty"`
}

type RecentMessages struct {
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}

// EventErrorPayload is the body of every scoped error event.
type EventErrorPayload struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}
