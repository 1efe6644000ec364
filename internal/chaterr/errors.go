// Package chaterr holds the error taxonomy shared by the storage, service,
// REST and realtime layers.
package chaterr

import "errors"

// Kind classifies an error for transport mapping.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Forbidden
	InvalidInput
	Conflict
	Expired
	CryptoFailure
	AuthFailure
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	case Expired:
		return "expired"
	case CryptoFailure:
		return "crypto_failure"
	case AuthFailure:
		return "auth_failure"
	default:
		return "internal"
	}
}

// Error is a classified, user-presentable failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-facing message of the first *Error in err's chain.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, true
	}
	return "", false
}

var (
	// Rooms & users
	ErrRoomNotFound       = New(NotFound, "chat room not found")
	ErrUserNotFound       = New(NotFound, "user not found")
	ErrTargetNotFound     = New(NotFound, "user to add not found")
	ErrSenderNotFound     = New(NotFound, "sender not found")
	ErrDuplicateRoomName  = New(Conflict, "a chat room with this name already exists")
	ErrNotAParticipant    = New(Forbidden, "you are not a participant of this chat room")
	ErrPrivateRoom        = New(Forbidden, "not authorized to access this private chat room")
	ErrNotRoomCreator     = New(Forbidden, "only the room creator can delete this chat room")
	ErrInviteOnly         = New(Forbidden, "private rooms accept new members by invitation only")
	ErrCreatorCannotLeave = New(Forbidden, "the room creator cannot leave the chat room")
	ErrEmptyRoomName      = New(InvalidInput, "room name is required")
	ErrEmptyContent       = New(InvalidInput, "message content cannot be empty")
	ErrContentTooLong     = New(InvalidInput, "message content is too long")

	// Invitations
	ErrInvitationNotFound      = New(NotFound, "invitation not found")
	ErrInviteeNotFound         = New(NotFound, "no user found with this email")
	ErrInviterNotParticipant   = New(Forbidden, "you must be a participant to invite users")
	ErrAlreadyParticipant      = New(Conflict, "user is already a participant of this chat room")
	ErrDuplicatePendingInvite  = New(Conflict, "a pending invitation already exists for this user")
	ErrNotTheInvitee           = New(Forbidden, "not authorized to respond to this invitation")
	ErrInvitationNoLongerValid = New(Expired, "invitation has expired or was already resolved")
	ErrInvalidDecision         = New(InvalidInput, "response must be either accepted or rejected")
	ErrInvalidEmail            = New(InvalidInput, "a valid email is required")

	// Credentials
	ErrTokenMissing   = New(AuthFailure, "authorization token missing")
	ErrTokenMalformed = New(AuthFailure, "malformed token")
	ErrTokenExpired   = New(AuthFailure, "token has expired")
	ErrUnknownUser    = New(AuthFailure, "token subject no longer exists")
	ErrInvalidToken   = New(AuthFailure, "invalid token")

	// Realtime wire
	ErrInvalidPayload = New(InvalidInput, "invalid message data")
	ErrSenderMismatch = New(Forbidden, "sender does not match the authenticated user")
	ErrUnknownEvent   = New(InvalidInput, "unknown event")
)
