package chathub

import "chatroom/backend/internal/models"

// Client is one authenticated realtime connection. It abstracts the
// underlying transport so the hub can be driven by WebSocket connections and
// by in-memory clients in tests.
type Client interface {
	// GetUserID returns the identity resolved at handshake.
	GetUserID() string
	// GetConnID returns the id unique to this connection. One user may hold
	// several connections.
	GetConnID() string

	// GetSendChannel returns the channel the hub writes outbound events to.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. It must be safe to call more than once.
	Close()
}
