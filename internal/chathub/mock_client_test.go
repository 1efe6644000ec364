package chathub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatroom/backend/internal/chathub"
	"chatroom/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	userID      string
	connID      string
	RecvChannel chan models.ServerEvent

	mu     sync.Mutex
	closed int
}

func newMockClient(userID, connID string) *MockClient {
	return &MockClient{
		userID:      userID,
		connID:      connID,
		RecvChannel: make(chan models.ServerEvent, 16),
	}
}

func (c *MockClient) GetUserID() string { return c.userID }
func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) GetSendChannel() chan<- models.ServerEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *MockClient) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns every event currently buffered for the client.
func (c *MockClient) drain() []models.ServerEvent {
	var out []models.ServerEvent
	for {
		select {
		case ev := <-c.RecvChannel:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsNamed(evs []models.ServerEvent, name string) []models.ServerEvent {
	var out []models.ServerEvent
	for _, ev := range evs {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

// MockRoomService is a testify mock of chathub.RoomService.
type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockRoomService) RoomMembers(ctx context.Context, room *models.ChatRoom) ([]models.UserSummary, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserSummary), args.Error(1)
}

func (m *MockRoomService) RecentMessages(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockRoomService) SendMemberMessage(ctx context.Context, roomID, senderID, content string) (*models.ChatMessage, error) {
	args := m.Called(ctx, roomID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMessage), args.Error(1)
}

var _ chathub.RoomService = (*MockRoomService)(nil)

// register hands c to a running hub and waits until it is live.
func register(t *testing.T, hub *chathub.ManagerService, c chathub.Client) {
	t.Helper()
	hub.RegisterCh <- c
	require.Eventually(t, func() bool { return hub.IsRegistered(c.GetConnID()) }, time.Second, 5*time.Millisecond)
}
