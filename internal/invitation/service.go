// Package invitation implements the room invitation workflow:
// PENDING -> ACCEPTED | REJECTED, with expiry evaluated when resolving.
package invitation

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

type Service struct {
	Storage storage.Storage
	TTL     time.Duration
	Now     func() time.Time

	log *logrus.Entry
}

func NewService(s storage.Storage, logger *logrus.Logger) *Service {
	return &Service{
		Storage: s,
		TTL:     config.InvitationTTL,
		Now:     func() time.Time { return time.Now().UTC() },
		log:     logger.WithField("component", "invitation"),
	}
}

// Outcome is the result of resolving an invitation.
type Outcome struct {
	InvitationID string                  `json:"invitationId"`
	RoomID       string                  `json:"chatRoomId"`
	Status       models.InvitationStatus `json:"status"`
	IsPrivate    bool                    `json:"isPrivate"`
}

// ParseDecision maps a client response ("accepted" / "rejected") to a status.
func ParseDecision(decision string) (models.InvitationStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(decision)) {
	case string(models.InvitationAccepted):
		return models.InvitationAccepted, nil
	case string(models.InvitationRejected):
		return models.InvitationRejected, nil
	default:
		return "", chaterr.ErrInvalidDecision
	}
}

// FindUserByEmail looks up a registered user by address.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	addr, err := normalizeAddress(email)
	if err != nil {
		return nil, err
	}
	return s.Storage.GetUserByEmail(ctx, addr)
}

// Invite creates a PENDING invitation for the user registered under
// inviteeEmail. The inviter must be a participant of the room.
func (s *Service) Invite(ctx context.Context, roomID, inviterID, inviteeEmail string) (*models.ChatRoomInvitation, error) {
	addr, err := normalizeAddress(inviteeEmail)
	if err != nil {
		return nil, err
	}

	unlock := s.Storage.LockRoom(roomID)
	defer unlock()

	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(inviterID) {
		return nil, chaterr.ErrInviterNotParticipant
	}

	invitee, err := s.Storage.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, chaterr.ErrUserNotFound) {
			return nil, chaterr.ErrInviteeNotFound
		}
		return nil, err
	}
	if room.HasParticipant(invitee.ID) {
		return nil, chaterr.ErrAlreadyParticipant
	}

	pending, err := s.Storage.HasPendingInvitation(ctx, roomID, invitee.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, chaterr.ErrDuplicatePendingInvite
	}

	now := s.Now()
	inv := &models.ChatRoomInvitation{
		RoomID:          roomID,
		InvitedByUserID: inviterID,
		InvitedUserID:   invitee.ID,
		Status:          models.InvitationPending,
		InvitedAt:       now,
		ExpiresAt:       now.Add(s.TTL),
	}
	if err := s.Storage.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"room_id":       roomID,
		"invitation_id": inv.ID,
		"invited_by":    inviterID,
		"user_id":       invitee.ID,
	}).Info("Invitation created")
	return inv, nil
}

// Resolve accepts or rejects an invitation on behalf of respondingUserID.
// Accepting makes the room private and adds the invitee in one transaction.
func (s *Service) Resolve(ctx context.Context, invitationID, respondingUserID, decision string) (*Outcome, error) {
	status, err := ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	inv, err := s.Storage.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InvitedUserID != respondingUserID {
		return nil, chaterr.ErrNotTheInvitee
	}

	now := s.Now()
	if !inv.Resolvable(now) {
		return nil, chaterr.ErrInvitationNoLongerValid
	}

	unlock := s.Storage.LockRoom(inv.RoomID)
	defer unlock()

	room, err := s.Storage.ResolveInvitation(ctx, invitationID, status, now)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"room_id":       room.ID,
		"invitation_id": invitationID,
		"user_id":       respondingUserID,
		"status":        status,
	}).Info("Invitation resolved")

	return &Outcome{
		InvitationID: invitationID,
		RoomID:       room.ID,
		Status:       status,
		IsPrivate:    room.IsPrivate,
	}, nil
}

// ListPending returns the user's PENDING invitations with room and inviter
// resolved. Expired but unresolved invitations are included.
func (s *Service) ListPending(ctx context.Context, userID string) ([]models.PendingInvitation, error) {
	invs, err := s.Storage.ListPendingInvitations(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.PendingInvitation, 0, len(invs))
	for _, inv := range invs {
		p := models.PendingInvitation{
			ID:        inv.ID,
			ChatRoom:  models.RoomSummary{ID: inv.RoomID},
			InvitedBy: models.UserSummary{ID: inv.InvitedByUserID},
			Status:    string(inv.Status),
			InvitedAt: inv.InvitedAt,
			ExpiresAt: inv.ExpiresAt,
		}

		room, err := s.Storage.GetRoomByID(ctx, inv.RoomID)
		switch {
		case err == nil:
			p.ChatRoom = models.RoomSummary{ID: room.ID, Name: room.Name, IsPrivate: room.IsPrivate}
		case !errors.Is(err, chaterr.ErrRoomNotFound):
			return nil, err
		}

		inviter, err := s.Storage.GetUserByID(ctx, inv.InvitedByUserID)
		switch {
		case err == nil:
			p.InvitedBy = inviter.Summary()
		case !errors.Is(err, chaterr.ErrUserNotFound):
			return nil, err
		}

		out = append(out, p)
	}
	return out, nil
}

func normalizeAddress(email string) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", chaterr.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", chaterr.ErrInvalidEmail
	}
	return email, nil
}
