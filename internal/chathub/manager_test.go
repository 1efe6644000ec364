package chathub_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/chathub"
	"chatroom/backend/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var roomX = &models.ChatRoom{ID: "x", Name: "general", CreatorID: "u1", ParticipantIDs: []string{"u1", "u2"}}

func newHub(t *testing.T, rooms chathub.RoomService) (*chathub.ManagerService, context.CancelFunc) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	hub := chathub.NewManagerService(rooms, chathub.NewOccupancy(), log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func roomsForX() *MockRoomService {
	rooms := new(MockRoomService)
	rooms.On("GetRoom", mock.Anything, "x").Return(roomX, nil)
	rooms.On("RoomMembers", mock.Anything, roomX).Return([]models.UserSummary{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}}, nil)
	rooms.On("RecentMessages", mock.Anything, "x", 50).Return([]models.ChatMessage{{ID: 1, RoomID: "x", Content: "earlier"}}, nil)
	return rooms
}

func joinedPair(t *testing.T, hub *chathub.ManagerService) (*MockClient, *MockClient) {
	t.Helper()
	a := newMockClient("u1", "conn-a")
	b := newMockClient("u2", "conn-b")
	register(t, hub, a)
	register(t, hub, b)
	require.NoError(t, hub.JoinRoom(context.Background(), a, "x"))
	require.NoError(t, hub.JoinRoom(context.Background(), b, "x"))
	a.drain()
	b.drain()
	return a, b
}

func TestManager_RegisterAndUnregister(t *testing.T) {
	hub, _ := newHub(t, new(MockRoomService))
	clientA := newMockClient("u1", "conn-a")

	register(t, hub, clientA)
	assert.True(t, hub.IsRegistered("conn-a"))

	hub.Unregister(clientA)
	assert.Eventually(t, func() bool { return clientA.CloseCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, hub.IsRegistered("conn-a"))
}

func TestManager_JoinRoom(t *testing.T) {
	hub, _ := newHub(t, roomsForX())
	a := newMockClient("u1", "conn-a")
	b := newMockClient("u2", "conn-b")
	register(t, hub, a)
	register(t, hub, b)

	require.NoError(t, hub.JoinRoom(context.Background(), a, "x"))
	evsA := a.drain()
	require.Len(t, evsA, 2)
	assert.Equal(t, models.EventRoomMembersUpdate, evsA[0].Event)
	update := evsA[0].Data.(models.RoomMembersUpdate)
	assert.Equal(t, 1, update.MemberCount)
	assert.Len(t, update.Members, 2)
	assert.Equal(t, models.EventRecentMessages, evsA[1].Event)
	assert.Equal(t, "earlier", evsA[1].Data.(models.RecentMessages).Messages[0].Content)

	require.NoError(t, hub.JoinRoom(context.Background(), b, "x"))

	evsA = a.drain()
	updates := eventsNamed(evsA, models.EventRoomMembersUpdate)
	require.Len(t, updates, 1, "existing members see the new count")
	assert.Equal(t, 2, updates[0].Data.(models.RoomMembersUpdate).MemberCount)
	assert.Empty(t, eventsNamed(evsA, models.EventRecentMessages), "history goes to the joiner only")
	assert.Len(t, eventsNamed(b.drain(), models.EventRecentMessages), 1)
	assert.Equal(t, 2, hub.Occupancy.Count("x"))
}

func TestManager_JoinRoom_Errors(t *testing.T) {
	rooms := roomsForX()
	rooms.On("GetRoom", mock.Anything, "missing").Return(nil, chaterr.ErrRoomNotFound)
	hub, _ := newHub(t, rooms)
	a, b := joinedPair(t, hub)
	outsider := newMockClient("u3", "conn-c")
	register(t, hub, outsider)

	tests := map[string]struct {
		client  *MockClient
		roomID  string
		wantMsg string
	}{
		"room not found":    {client: a, roomID: "missing", wantMsg: chaterr.ErrRoomNotFound.Message},
		"not a participant": {client: outsider, roomID: "x", wantMsg: chaterr.ErrNotAParticipant.Message},
		"empty room id":     {client: a, roomID: "  ", wantMsg: chaterr.ErrInvalidPayload.Message},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := hub.JoinRoom(context.Background(), tt.client, tt.roomID)
			assert.Error(t, err)

			evs := tt.client.drain()
			require.Len(t, evs, 1)
			assert.Equal(t, models.EventJoinRoomError, evs[0].Event)
			assert.Equal(t, tt.wantMsg, evs[0].Data.(models.EventErrorPayload).Message)
			assert.Empty(t, b.drain(), "other connections are unaffected")
		})
	}
	assert.False(t, hub.Occupancy.Contains("x", "conn-c"))
}

// disconnectOnLookup drops client from the hub while JoinRoom is still
// resolving the room.
type disconnectOnLookup struct {
	*MockRoomService
	hub    *chathub.ManagerService
	client chathub.Client
}

func (r *disconnectOnLookup) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	r.hub.Disconnect(r.client)
	return r.MockRoomService.GetRoom(ctx, roomID)
}

func TestManager_JoinRoom_DisconnectedMidJoin(t *testing.T) {
	rooms := roomsForX()
	hub, _ := newHub(t, rooms)
	a := newMockClient("u1", "conn-a")
	b := newMockClient("u2", "conn-b")
	register(t, hub, a)
	register(t, hub, b)
	require.NoError(t, hub.JoinRoom(context.Background(), b, "x"))
	b.drain()
	hub.Rooms = &disconnectOnLookup{MockRoomService: rooms, hub: hub, client: a}

	err := hub.JoinRoom(context.Background(), a, "x")

	assert.ErrorIs(t, err, chathub.ErrConnectionClosed)
	assert.False(t, hub.IsRegistered("conn-a"))
	assert.False(t, hub.Occupancy.Contains("x", "conn-a"))
	assert.Equal(t, 1, hub.Occupancy.Count("x"))
	assert.Empty(t, eventsNamed(b.drain(), models.EventRoomMembersUpdate), "a closed connection is never announced")
}

// Scenario: both joined connections receive exactly one copy of the message.
func TestManager_SendMessage_BroadcastsOnce(t *testing.T) {
	rooms := roomsForX()
	sent := &models.ChatMessage{ID: 7, RoomID: "x", Sender: models.UserSummary{ID: "u1", Name: "Alice"}, Content: "hi"}
	rooms.On("SendMemberMessage", mock.Anything, "x", "u1", "hi").Return(sent, nil).Once()
	hub, _ := newHub(t, rooms)
	a, b := joinedPair(t, hub)

	hub.HandleEvent(context.Background(), a, []byte(`{"event":"send_message","data":{"roomId":"x","content":"hi","senderId":"u1"}}`))

	for name, c := range map[string]*MockClient{"sender": a, "peer": b} {
		got := eventsNamed(c.drain(), models.EventReceiveMessage)
		require.Len(t, got, 1, name)
		assert.Equal(t, uint(7), got[0].Data.(*models.ChatMessage).ID, name)
	}
	rooms.AssertExpectations(t)
}

func TestManager_SendMessage_PersistenceFailureNotBroadcast(t *testing.T) {
	rooms := roomsForX()
	rooms.On("SendMemberMessage", mock.Anything, "x", "u1", "hi").Return(nil, errors.New("connection refused"))
	hub, _ := newHub(t, rooms)
	a, b := joinedPair(t, hub)

	err := hub.SendMessage(context.Background(), a, models.SendMessageRequest{RoomID: "x", Content: "hi", SenderID: "u1"})

	assert.Error(t, err)
	evs := a.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventMessageError, evs[0].Event)
	payload := evs[0].Data.(models.EventErrorPayload)
	assert.NotContains(t, payload.Message, "connection refused", "internal details stay in the logs")
	assert.Equal(t, "x", payload.RoomID)
	assert.Empty(t, b.drain())
}

func TestManager_SendMessage_Rejections(t *testing.T) {
	rooms := roomsForX()
	rooms.On("SendMemberMessage", mock.Anything, "x", "u2", "hi").Return(nil, chaterr.ErrNotAParticipant)
	hub, _ := newHub(t, rooms)
	a, b := joinedPair(t, hub)

	tests := map[string]struct {
		client  *MockClient
		req     models.SendMessageRequest
		wantErr error
	}{
		"claims another sender": {a, models.SendMessageRequest{RoomID: "x", Content: "hi", SenderID: "u2"}, chaterr.ErrSenderMismatch},
		"missing room":          {a, models.SendMessageRequest{Content: "hi", SenderID: "u1"}, chaterr.ErrInvalidPayload},
		"missing sender":        {a, models.SendMessageRequest{RoomID: "x", Content: "hi"}, chaterr.ErrInvalidPayload},
		"store rejects sender":  {b, models.SendMessageRequest{RoomID: "x", Content: "hi", SenderID: "u2"}, chaterr.ErrNotAParticipant},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := hub.SendMessage(context.Background(), tt.client, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			evs := tt.client.drain()
			require.Len(t, evs, 1)
			assert.Equal(t, models.EventMessageError, evs[0].Event)
			assert.Equal(t, tt.wantErr.(*chaterr.Error).Message, evs[0].Data.(models.EventErrorPayload).Message)
		})
	}
	rooms.AssertNotCalled(t, "SendMemberMessage", mock.Anything, "x", "u1", "hi")
	assert.Empty(t, eventsNamed(b.drain(), models.EventReceiveMessage))
}

func TestManager_HandleEvent_RejectsMalformedFrames(t *testing.T) {
	rooms := roomsForX()
	hub, _ := newHub(t, rooms)
	a, _ := joinedPair(t, hub)

	tests := map[string]struct {
		frame     string
		wantEvent string
	}{
		"not json":           {`hello`, models.EventError},
		"unknown envelope":   {`{"event":"join_room","data":{"roomId":"x"},"extra":true}`, models.EventError},
		"unknown event":      {`{"event":"shout","data":{}}`, models.EventError},
		"unknown data field": {`{"event":"send_message","data":{"roomId":"x","content":"hi","senderId":"u1","sender":{"id":"u1"}}}`, models.EventMessageError},
		"non-string field":   {`{"event":"send_message","data":{"roomId":5,"content":"hi","senderId":"u1"}}`, models.EventMessageError},
		"missing data":       {`{"event":"send_message"}`, models.EventMessageError},
		"bad join payload":   {`{"event":"join_room","data":"x"}`, models.EventJoinRoomError},
		"trailing data":      {`{"event":"leave_room","data":{"roomId":"x"}} {}`, models.EventError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			hub.HandleEvent(context.Background(), a, []byte(tt.frame))

			evs := a.drain()
			require.Len(t, evs, 1)
			assert.Equal(t, tt.wantEvent, evs[0].Event)
		})
	}
	rooms.AssertNotCalled(t, "SendMemberMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, hub.Occupancy.Contains("x", "conn-a"))
}

func TestManager_LeaveRoom(t *testing.T) {
	hub, _ := newHub(t, roomsForX())
	a, b := joinedPair(t, hub)

	hub.HandleEvent(context.Background(), a, []byte(`{"event":"leave_room","data":{"roomId":"x"}}`))

	updates := eventsNamed(b.drain(), models.EventRoomMembersUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, 1, updates[0].Data.(models.RoomMembersUpdate).MemberCount)
	assert.Empty(t, a.drain(), "the leaver is no longer in the group")
	assert.True(t, hub.IsRegistered("conn-a"))
}

func TestManager_Disconnect_Idempotent(t *testing.T) {
	hub, _ := newHub(t, roomsForX())
	a, b := joinedPair(t, hub)

	hub.Disconnect(a)
	hub.Disconnect(a)

	assert.Equal(t, 1, a.CloseCount())
	assert.False(t, hub.IsRegistered("conn-a"))
	updates := eventsNamed(b.drain(), models.EventRoomMembersUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, models.RoomMembersUpdate{RoomID: "x", MemberCount: 1}, updates[0].Data)

	never := newMockClient("u9", "conn-never")
	assert.NotPanics(t, func() { hub.Disconnect(never) })
	assert.Equal(t, 0, never.CloseCount())
}

func TestManager_DropsSlowClient(t *testing.T) {
	rooms := roomsForX()
	hub, _ := newHub(t, rooms)
	a, _ := joinedPair(t, hub)
	slow := &MockClient{userID: "u2", connID: "conn-slow", RecvChannel: make(chan models.ServerEvent)}
	register(t, hub, slow)
	hub.Occupancy.Join("x", "conn-slow")

	hub.LeaveRoom(a, "x")

	assert.False(t, hub.IsRegistered("conn-slow"))
	assert.Equal(t, 1, slow.CloseCount())
	assert.False(t, hub.Occupancy.Contains("x", "conn-slow"))
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	hub, cancel := newHub(t, new(MockRoomService))
	a := newMockClient("u1", "conn-a")
	register(t, hub, a)

	cancel()

	assert.Eventually(t, func() bool { return a.CloseCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Unregister(a)
	assert.Equal(t, 1, a.CloseCount())
}
