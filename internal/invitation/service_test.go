package invitation_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/chatroom"
	"chatroom/backend/internal/encryption"
	"chatroom/backend/internal/invitation"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"chatroom/backend/internal/storage/storagetest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type fixture struct {
	store *storage.Service
	rooms *chatroom.Service
	svc   *invitation.Service
	now   time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := storagetest.New(t)
	storagetest.SeedUser(t, store, "u1", "Alice", "alice@example.com")
	storagetest.SeedUser(t, store, "u2", "Bob", "bob@example.com")
	storagetest.SeedUser(t, store, "u3", "Carol", "carol@example.com")

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := encryption.New(bytes.Repeat([]byte{4}, encryption.KeySize))
	require.NoError(t, err)

	f := &fixture{
		store: store,
		rooms: chatroom.NewService(store, c, 50, log),
		svc:   invitation.NewService(store, log),
		now:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) room(t *testing.T, name string, private bool) *models.ChatRoom {
	t.Helper()
	room, err := f.rooms.CreateRoom(ctx, "u1", name, private)
	require.NoError(t, err)
	return room
}

func TestParseDecision(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    models.InvitationStatus
		wantErr error
	}{
		"accepted":     {in: "accepted", want: models.InvitationAccepted},
		"rejected":     {in: "rejected", want: models.InvitationRejected},
		"upper case":   {in: " ACCEPTED ", want: models.InvitationAccepted},
		"unknown":      {in: "maybe", wantErr: chaterr.ErrInvalidDecision},
		"empty string": {in: "", wantErr: chaterr.ErrInvalidDecision},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := invitation.ParseDecision(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvite(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)

	inv, err := f.svc.Invite(ctx, room.ID, "u1", "  BOB@example.com ")

	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "u2", inv.InvitedUserID)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, f.now.Add(7*24*time.Hour), inv.ExpiresAt)
}

func TestInvite_Errors(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	_, err := f.rooms.AddParticipant(ctx, room.ID, "u1", "u3")
	require.NoError(t, err)

	tests := map[string]struct {
		roomID  string
		inviter string
		email   string
		wantErr error
	}{
		"malformed email":       {room.ID, "u1", "not-an-email", chaterr.ErrInvalidEmail},
		"missing email":         {room.ID, "u1", "  ", chaterr.ErrInvalidEmail},
		"room not found":        {"missing", "u1", "bob@example.com", chaterr.ErrRoomNotFound},
		"inviter not member":    {room.ID, "u2", "carol@example.com", chaterr.ErrInviterNotParticipant},
		"invitee not found":     {room.ID, "u1", "nobody@example.com", chaterr.ErrInviteeNotFound},
		"already a participant": {room.ID, "u1", "carol@example.com", chaterr.ErrAlreadyParticipant},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Invite(ctx, tt.roomID, tt.inviter, tt.email)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInvite_DuplicatePending(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)

	_, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")

	assert.ErrorIs(t, err, chaterr.ErrDuplicatePendingInvite)
	assert.Equal(t, chaterr.Conflict, chaterr.KindOf(err))
}

func TestInvite_AfterRejectionAllowsNewInvite(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, inv.ID, "u2", "rejected")
	require.NoError(t, err)

	again, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")

	require.NoError(t, err)
	assert.NotEqual(t, inv.ID, again.ID)
}

func TestResolve_Accept(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	out, err := f.svc.Resolve(ctx, inv.ID, "u2", "accepted")

	require.NoError(t, err)
	assert.Equal(t, room.ID, out.RoomID)
	assert.Equal(t, models.InvitationAccepted, out.Status)
	assert.True(t, out.IsPrivate)

	loaded, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsPrivate)
	assert.ElementsMatch(t, []string{"u1", "u2"}, loaded.ParticipantIDs)

	stored, err := f.store.GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, stored.Status)
	require.NotNil(t, stored.RespondedAt)
}

func TestResolve_AcceptTwice(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, inv.ID, "u2", "accepted")
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, inv.ID, "u2", "accepted")

	assert.ErrorIs(t, err, chaterr.ErrInvitationNoLongerValid)
	loaded, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.ParticipantIDs, 2)
}

func TestResolve_Reject(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)

	out, err := f.svc.Resolve(ctx, inv.ID, "u2", "rejected")

	require.NoError(t, err)
	assert.Equal(t, models.InvitationRejected, out.Status)
	assert.False(t, out.IsPrivate)
	loaded, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, loaded.ParticipantIDs)
	assert.False(t, loaded.IsPrivate)
}

// Scenario: accepting eight days after the invite fails and leaves the room untouched.
func TestResolve_Expired(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)
	f.now = f.now.Add(8 * 24 * time.Hour)

	_, err = f.svc.Resolve(ctx, inv.ID, "u2", "accepted")

	assert.ErrorIs(t, err, chaterr.ErrInvitationNoLongerValid)
	assert.Equal(t, chaterr.Expired, chaterr.KindOf(err))
	loaded, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, loaded.ParticipantIDs)
	assert.False(t, loaded.IsPrivate)
}

func TestResolve_Errors(t *testing.T) {
	f := setup(t)
	room := f.room(t, "x", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, "missing", "u2", "accepted")
	assert.ErrorIs(t, err, chaterr.ErrInvitationNotFound)

	_, err = f.svc.Resolve(ctx, inv.ID, "u3", "accepted")
	assert.ErrorIs(t, err, chaterr.ErrNotTheInvitee)

	_, err = f.svc.Resolve(ctx, inv.ID, "u2", "perhaps")
	assert.ErrorIs(t, err, chaterr.ErrInvalidDecision)
}

// Scenario: a room made private through an accepted invitation rejects posts
// from non-members.
func TestAcceptedInvitation_MakesRoomPrivateForSenders(t *testing.T) {
	f := setup(t)
	room := f.room(t, "secret", false)
	inv, err := f.svc.Invite(ctx, room.ID, "u1", "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, inv.ID, "u2", "accepted")
	require.NoError(t, err)

	_, err = f.rooms.SendMessage(ctx, room.ID, "u3", "let me in")

	assert.ErrorIs(t, err, chaterr.ErrPrivateRoom)
	assert.Equal(t, chaterr.Forbidden, chaterr.KindOf(err))

	_, err = f.rooms.SendMessage(ctx, room.ID, "u2", "hi all")
	assert.NoError(t, err)
}

func TestListPending(t *testing.T) {
	f := setup(t)
	x := f.room(t, "x", false)
	y := f.room(t, "y", false)
	_, err := f.svc.Invite(ctx, x.ID, "u1", "bob@example.com")
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.Invite(ctx, y.ID, "u1", "bob@example.com")
	require.NoError(t, err)

	f.now = f.now.Add(30 * 24 * time.Hour)
	pending, err := f.svc.ListPending(ctx, "u2")

	require.NoError(t, err)
	require.Len(t, pending, 2, "expired invitations are still listed")
	assert.Equal(t, "y", pending[0].ChatRoom.Name)
	assert.Equal(t, "x", pending[1].ChatRoom.Name)
	assert.Equal(t, "Alice", pending[0].InvitedBy.Name)

	none, err := f.svc.ListPending(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindUserByEmail(t *testing.T) {
	f := setup(t)

	user, err := f.svc.FindUserByEmail(ctx, "Carol@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u3", user.ID)

	_, err = f.svc.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, chaterr.ErrUserNotFound)

	_, err = f.svc.FindUserByEmail(ctx, "")
	assert.ErrorIs(t, err, chaterr.ErrInvalidEmail)
}
