// Package chatroom implements room membership and message operations on top
// of the store. Both the REST handlers and the realtime hub go through it.
package chatroom

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/encryption"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// RedactedPlaceholder replaces message bodies that fail to decrypt.
const RedactedPlaceholder = "[message unavailable]"

// Service is the Room API.
type Service struct {
	Storage   storage.Storage
	Cipher    encryption.Cipher
	Retention int
	Now       func() time.Time

	// OnDegraded, if set, is called after a message was stored unencrypted.
	OnDegraded func(roomID string)

	log *logrus.Entry
}

func NewService(s storage.Storage, c encryption.Cipher, retention int, logger *logrus.Logger) *Service {
	if retention <= 0 {
		retention = config.DefaultMessageRetention
	}
	return &Service{
		Storage:   s,
		Cipher:    c,
		Retention: retention,
		Now:       func() time.Time { return time.Now().UTC() },
		log:       logger.WithField("component", "chatroom"),
	}
}

// DeleteResult describes a deleted room.
type DeleteResult struct {
	DeletedRoomID           string `json:"deletedRoomId"`
	DeletedInvitationsCount int64  `json:"deletedInvitationsCount"`
}

// CreateRoom creates a room whose only participant is its creator.
func (s *Service) CreateRoom(ctx context.Context, creatorID, name string, isPrivate bool) (*models.ChatRoom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, chaterr.ErrEmptyRoomName
	}

	creator, err := s.Storage.GetUserByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	room := &models.ChatRoom{
		Name:        name,
		CreatorID:   creator.ID,
		CreatorName: creator.DisplayName,
		IsPrivate:   isPrivate,
		CreatedAt:   s.Now(),
	}
	if err := s.Storage.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": creatorID}).Info("Chat room created")
	return room, nil
}

// GetRoom loads a room with its participants.
func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	return s.Storage.GetRoomByID(ctx, roomID)
}

// AddParticipant lets an existing participant add another user directly.
// Private rooms only grow through invitations.
func (s *Service) AddParticipant(ctx context.Context, roomID, actingUserID, targetUserID string) (*models.ChatRoom, error) {
	unlock := s.Storage.LockRoom(roomID)
	defer unlock()

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(actingUserID) {
		return nil, chaterr.ErrNotAParticipant
	}
	if _, err := s.Storage.GetUserByID(ctx, targetUserID); err != nil {
		if errors.Is(err, chaterr.ErrUserNotFound) {
			return nil, chaterr.ErrTargetNotFound
		}
		return nil, err
	}
	if room.HasParticipant(targetUserID) {
		return room, nil
	}
	if room.IsPrivate {
		return nil, chaterr.ErrInviteOnly
	}

	if _, err := s.Storage.AddParticipant(ctx, roomID, targetUserID, models.JoinedViaDirectAdd); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": targetUserID, "added_by": actingUserID}).
		Info("Participant added")
	return s.Storage.GetRoomByID(ctx, roomID)
}

// RemoveParticipant removes userID from the room. Removing a non-member is a
// no-op; empty rooms are kept.
func (s *Service) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	unlock := s.Storage.LockRoom(roomID)
	defer unlock()

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if userID == room.CreatorID {
		return chaterr.ErrCreatorCannotLeave
	}
	if !room.HasParticipant(userID) {
		return nil
	}
	return s.Storage.RemoveParticipant(ctx, roomID, userID)
}

// ListRoomsForUser returns every room the user participates in.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	return s.Storage.ListRoomsForUser(ctx, userID)
}

// GetRoomMessages returns the room and up to limit of its newest messages in
// ascending order. Public rooms are readable by anyone; private rooms only by
// participants.
func (s *Service) GetRoomMessages(ctx context.Context, roomID, requestingUserID string, limit int) (*models.ChatRoom, []models.ChatMessage, error) {
	if limit <= 0 || limit > config.DefaultMessagePageSize {
		limit = config.DefaultMessagePageSize
	}

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.IsPrivate && !room.HasParticipant(requestingUserID) {
		return nil, nil, chaterr.ErrPrivateRoom
	}

	rows, err := s.Storage.RecentMessages(ctx, roomID, limit)
	if err != nil {
		return nil, nil, err
	}
	return room, s.reveal(rows), nil
}

// RecentMessages returns the newest n messages of a room, oldest first. It
// does no access checks.
func (s *Service) RecentMessages(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error) {
	rows, err := s.Storage.RecentMessages(ctx, roomID, n)
	if err != nil {
		return nil, err
	}
	return s.reveal(rows), nil
}

// RoomMembers resolves the room's participants to user summaries, in
// participant order.
func (s *Service) RoomMembers(ctx context.Context, room *models.ChatRoom) ([]models.UserSummary, error) {
	users, err := s.Storage.GetUsersByIDs(ctx, room.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]models.UserSummary, 0, len(room.ParticipantIDs))
	for _, id := range room.ParticipantIDs {
		if u, ok := byID[id]; ok {
			members = append(members, u.Summary())
		} else {
			members = append(members, models.UserSummary{ID: id})
		}
	}
	return members, nil
}

// SendMessage stores a message. Anyone may post to a public room; private
// rooms require membership.
func (s *Service) SendMessage(ctx context.Context, roomID, senderID, content string) (*models.ChatMessage, error) {
	return s.send(ctx, roomID, senderID, content, false)
}

// SendMemberMessage is SendMessage with membership required regardless of the
// room's privacy. The realtime gateway uses it.
func (s *Service) SendMemberMessage(ctx context.Context, roomID, senderID, content string) (*models.ChatMessage, error) {
	return s.send(ctx, roomID, senderID, content, true)
}

func (s *Service) send(ctx context.Context, roomID, senderID, content string, membersOnly bool) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, chaterr.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > config.MaxMessageLength {
		return nil, chaterr.ErrContentTooLong
	}

	unlock := s.Storage.LockRoom(roomID)
	defer unlock()

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	sender, err := s.Storage.GetUserByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, chaterr.ErrUserNotFound) {
			return nil, chaterr.ErrSenderNotFound
		}
		return nil, err
	}

	member := room.HasParticipant(senderID)
	switch {
	case membersOnly && !member:
		return nil, chaterr.ErrNotAParticipant
	case room.IsPrivate && !member:
		return nil, chaterr.ErrPrivateRoom
	}

	row := &models.ChatHistory{
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		CreatedAt:  s.Now(),
	}
	logCtx := s.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": senderID})

	envelope, err := s.Cipher.Encrypt(content)
	if err != nil {
		// degraded mode: keep the message, flagged as plaintext
		logCtx.WithError(err).Warn("Encryption failed, storing message unencrypted")
		row.Content = content
		row.Encrypted = false
	} else {
		row.EncryptedContent = envelope
		row.Encrypted = true
	}

	if err := s.Storage.AppendMessage(ctx, row, s.Retention); err != nil {
		logCtx.WithError(err).Error("Failed to persist chat message")
		return nil, err
	}
	if !row.Encrypted && s.OnDegraded != nil {
		s.OnDegraded(roomID)
	}

	return &models.ChatMessage{
		ID:        row.ID,
		RoomID:    roomID,
		Sender:    sender.Summary(),
		Content:   content,
		Encrypted: row.Encrypted,
		Timestamp: row.CreatedAt,
	}, nil
}

// ClearMessages deletes all messages of a room. Only participants may do so.
func (s *Service) ClearMessages(ctx context.Context, roomID, actingUserID string) (int64, error) {
	unlock := s.Storage.LockRoom(roomID)
	defer unlock()

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if !room.HasParticipant(actingUserID) {
		return 0, chaterr.ErrNotAParticipant
	}

	deleted, err := s.Storage.ClearMessages(ctx, roomID)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": actingUserID, "deleted": deleted}).
		Info("Chat room messages cleared")
	return deleted, nil
}

// DeleteRoom deletes a room with its invitations, memberships and messages.
// Only the creator may delete a room.
func (s *Service) DeleteRoom(ctx context.Context, roomID, actingUserID string) (*DeleteResult, error) {
	unlock := s.Storage.LockRoom(roomID)
	defer unlock()

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID != actingUserID {
		return nil, chaterr.ErrNotRoomCreator
	}

	deletedInvitations, err := s.Storage.DeleteRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"room_id": roomID, "invitations": deletedInvitations}).Info("Chat room deleted")
	return &DeleteResult{DeletedRoomID: roomID, DeletedInvitationsCount: deletedInvitations}, nil
}

// reveal turns stored rows into deliverable messages. Rows that fail to
// decrypt are redacted.
func (s *Service) reveal(rows []models.ChatHistory) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(rows))
	for i := range rows {
		out = append(out, s.revealOne(&rows[i]))
	}
	return out
}

func (s *Service) revealOne(row *models.ChatHistory) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        row.ID,
		RoomID:    row.RoomID,
		Sender:    models.UserSummary{ID: row.SenderID, Name: row.SenderName},
		Encrypted: row.Encrypted,
		Timestamp: row.CreatedAt,
	}
	if row.Degraded() {
		msg.Content = row.Content
		return msg
	}

	plain, err := s.Cipher.Decrypt(row.EncryptedContent)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"room_id": row.RoomID, "message_id": row.ID}).
			Warn("Failed to decrypt stored message")
		msg.Content = RedactedPlaceholder
		msg.Redacted = true
		return msg
	}
	msg.Content = plain
	return msg
}
