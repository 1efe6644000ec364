package config

import "time"

const (
	// Messages
	DefaultMessageRetention = 50
	DefaultMessagePageSize  = 100
	RecentMessagesOnJoin    = 50
	MaxMessageLength        = 4000

	// Invitations
	InvitationTTL = 7 * 24 * time.Hour

	// Auth
	TokenIssuer      = "chatroom-service"
	DevTokenTTL      = 72 * time.Hour
	EncryptionKeyLen = 32

	// HTTP
	DefaultHTTPAddr        = ":8080"
	DefaultRateLimitMax    = 120
	DefaultRateLimitWindow = time.Minute
	HTTPReadTimeout        = 10 * time.Second
	HTTPWriteTimeout       = 10 * time.Second
	ShutdownTimeout        = 15 * time.Second

	// Worker
	ReencryptQueue       = "low"
	WorkerConcurrency    = 4
	ReencryptTaskTimeout = 2 * time.Minute
)
