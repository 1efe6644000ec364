// Package chathub is the realtime gateway: it tracks authenticated
// connections, their room subscriptions, and fans room events out to them.
package chathub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// RoomService is the part of the Room API the gateway needs.
type RoomService interface {
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	RoomMembers(ctx context.Context, room *models.ChatRoom) ([]models.UserSummary, error)
	RecentMessages(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error)
	SendMemberMessage(ctx context.Context, roomID, senderID, content string) (*models.ChatMessage, error)
}

const genericFailure = "Something went wrong, please try again"

// ErrConnectionClosed is returned by JoinRoom when the connection was
// disconnected before the join completed.
var ErrConnectionClosed = errors.New("connection closed")

// ManagerService is the hub. Run owns registration; event handling happens on
// each client's read goroutine.
type ManagerService struct {
	RegisterCh   chan Client
	UnregisterCh chan Client

	Rooms     RoomService
	Occupancy *Occupancy

	clients map[string]Client
	mu      sync.RWMutex
	done    chan struct{}
	log     *logrus.Entry
}

func NewManagerService(rooms RoomService, occupancy *Occupancy, logger *logrus.Logger) *ManagerService {
	if occupancy == nil {
		occupancy = NewOccupancy()
	}
	return &ManagerService{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Rooms:        rooms,
		Occupancy:    occupancy,
		clients:      make(map[string]Client),
		done:         make(chan struct{}),
		log:          logger.WithField("component", "chathub"),
	}
}

// Run processes registrations until ctx is cancelled, then closes every
// client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return

		case c := <-m.RegisterCh:
			m.register(c)

		case c := <-m.UnregisterCh:
			m.Disconnect(c)
		}
	}
}

// Unregister hands c to Run for removal, or removes it directly once Run has
// exited.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
		m.Disconnect(c)
	}
}

// Register makes c live immediately, without going through Run.
func (m *ManagerService) Register(c Client) {
	m.register(c)
}

func (m *ManagerService) register(c Client) {
	m.mu.Lock()
	m.clients[c.GetConnID()] = c
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"conn_id": c.GetConnID(), "user_id": c.GetUserID()}).Info("Client registered")
}

// Wait blocks until Run has returned and every client was closed.
func (m *ManagerService) Wait() {
	<-m.done
}

// Disconnect removes c from every room it occupied and broadcasts the new
// counts. Calling it again, or for a client that never joined, is a no-op.
func (m *ManagerService) Disconnect(c Client) {
	connID := c.GetConnID()

	m.mu.Lock()
	_, registered := m.clients[connID]
	delete(m.clients, connID)
	m.mu.Unlock()

	if registered {
		c.Close()
	}

	for roomID, remaining := range m.Occupancy.LeaveAll(connID) {
		m.broadcast(roomID, models.ServerEvent{
			Event: models.EventRoomMembersUpdate,
			Data:  models.RoomMembersUpdate{RoomID: roomID, MemberCount: remaining},
		})
	}

	if registered {
		m.log.WithFields(logrus.Fields{"conn_id": connID, "user_id": c.GetUserID()}).Info("Client disconnected")
	}
}

func (m *ManagerService) shutdown() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]Client)
	m.mu.Unlock()

	for id, c := range clients {
		m.Occupancy.LeaveAll(id)
		c.Close()
	}
	m.log.WithField("clients", len(clients)).Info("Hub stopped")
}

// HandleEvent decodes one frame from c and dispatches it. Failures are
// reported to c only.
func (m *ManagerService) HandleEvent(ctx context.Context, c Client, frame []byte) {
	var ev models.ClientEvent
	if err := decodeStrict(frame, &ev); err != nil {
		m.fail(c, models.EventError, "", err)
		return
	}

	switch ev.Event {
	case models.EventJoinRoom:
		var req models.JoinRoomRequest
		if err := decodeStrict(ev.Data, &req); err != nil {
			m.fail(c, models.EventJoinRoomError, "", err)
			return
		}
		_ = m.JoinRoom(ctx, c, req.RoomID)

	case models.EventLeaveRoom:
		var req models.JoinRoomRequest
		if err := decodeStrict(ev.Data, &req); err != nil {
			m.fail(c, models.EventError, "", err)
			return
		}
		m.LeaveRoom(c, req.RoomID)

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if err := decodeStrict(ev.Data, &req); err != nil {
			m.fail(c, models.EventMessageError, "", err)
			return
		}
		_ = m.SendMessage(ctx, c, req)

	default:
		m.fail(c, models.EventError, "", chaterr.ErrUnknownEvent)
	}
}

// JoinRoom subscribes c to roomID if its user is a participant, broadcasts the
// room's occupancy and pushes recent history to c alone.
func (m *ManagerService) JoinRoom(ctx context.Context, c Client, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	logCtx := m.log.WithFields(logrus.Fields{"conn_id": c.GetConnID(), "user_id": c.GetUserID(), "room_id": roomID})

	if roomID == "" {
		m.fail(c, models.EventJoinRoomError, roomID, chaterr.ErrInvalidPayload)
		return chaterr.ErrInvalidPayload
	}

	room, err := m.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Join rejected")
		m.fail(c, models.EventJoinRoomError, roomID, err)
		return err
	}
	if !room.HasParticipant(c.GetUserID()) {
		logCtx.Warn("Join rejected: not a participant")
		m.fail(c, models.EventJoinRoomError, roomID, chaterr.ErrNotAParticipant)
		return chaterr.ErrNotAParticipant
	}

	count, live := m.occupy(roomID, c)
	if !live {
		logCtx.Info("Join dropped: connection already closed")
		return ErrConnectionClosed
	}

	members, err := m.Rooms.RoomMembers(ctx, room)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to resolve room members")
	}
	m.broadcast(roomID, models.ServerEvent{
		Event: models.EventRoomMembersUpdate,
		Data:  models.RoomMembersUpdate{RoomID: roomID, MemberCount: count, Members: members},
	})

	recent, err := m.Rooms.RecentMessages(ctx, roomID, config.RecentMessagesOnJoin)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to load recent messages")
		recent = []models.ChatMessage{}
	}
	m.sendTo(c, models.ServerEvent{
		Event: models.EventRecentMessages,
		Data:  models.RecentMessages{RoomID: roomID, Messages: recent},
	})

	logCtx.WithField("occupancy", count).Info("Joined room")
	return nil
}

// occupy adds c to roomID only while c is still registered. Disconnect
// unregisters under the write lock before clearing occupancy, so a join that
// loses the race never re-adds a closed connection.
func (m *ManagerService) occupy(roomID string, c Client) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.clients[c.GetConnID()]; !ok {
		return 0, false
	}
	return m.Occupancy.Join(roomID, c.GetConnID()), true
}

// LeaveRoom unsubscribes c from roomID.
func (m *ManagerService) LeaveRoom(c Client, roomID string) {
	remaining, ok := m.Occupancy.Leave(roomID, c.GetConnID())
	if !ok {
		return
	}
	m.broadcast(roomID, models.ServerEvent{
		Event: models.EventRoomMembersUpdate,
		Data:  models.RoomMembersUpdate{RoomID: roomID, MemberCount: remaining},
	})
}

// SendMessage persists a message from c and broadcasts it to the room. The
// claimed sender must be the connection's own identity.
func (m *ManagerService) SendMessage(ctx context.Context, c Client, req models.SendMessageRequest) error {
	roomID := strings.TrimSpace(req.RoomID)
	logCtx := m.log.WithFields(logrus.Fields{"conn_id": c.GetConnID(), "user_id": c.GetUserID(), "room_id": roomID})

	switch {
	case roomID == "" || req.SenderID == "":
		m.fail(c, models.EventMessageError, roomID, chaterr.ErrInvalidPayload)
		return chaterr.ErrInvalidPayload
	case req.SenderID != c.GetUserID():
		logCtx.WithField("claimed_sender", req.SenderID).Warn("Sender mismatch")
		m.fail(c, models.EventMessageError, roomID, chaterr.ErrSenderMismatch)
		return chaterr.ErrSenderMismatch
	}

	msg, err := m.Rooms.SendMemberMessage(ctx, roomID, req.SenderID, req.Content)
	if err != nil {
		logCtx.WithError(err).Warn("Message rejected")
		m.fail(c, models.EventMessageError, roomID, err)
		return err
	}

	m.broadcast(roomID, models.ServerEvent{Event: models.EventReceiveMessage, Data: msg})
	return nil
}

// broadcast delivers ev to every connection in roomID. Connections whose
// buffers are full are dropped.
func (m *ManagerService) broadcast(roomID string, ev models.ServerEvent) {
	var slow []Client

	m.mu.RLock()
	for _, connID := range m.Occupancy.MembersOf(roomID) {
		c, ok := m.clients[connID]
		if !ok {
			continue
		}
		select {
		case c.GetSendChannel() <- ev:
		default:
			slow = append(slow, c)
		}
	}
	m.mu.RUnlock()

	m.dropSlow(slow)
}

// sendTo delivers ev to c alone, if c is still registered.
func (m *ManagerService) sendTo(c Client, ev models.ServerEvent) {
	var slow []Client

	m.mu.RLock()
	if _, ok := m.clients[c.GetConnID()]; ok {
		select {
		case c.GetSendChannel() <- ev:
		default:
			slow = append(slow, c)
		}
	}
	m.mu.RUnlock()

	m.dropSlow(slow)
}

func (m *ManagerService) dropSlow(slow []Client) {
	for _, c := range slow {
		m.log.WithField("conn_id", c.GetConnID()).Warn("Send buffer full, dropping client")
		m.Disconnect(c)
	}
}

func (m *ManagerService) fail(c Client, event, roomID string, err error) {
	m.sendTo(c, models.ServerEvent{
		Event: event,
		Data:  models.EventErrorPayload{Message: userMessage(err), RoomID: roomID},
	})
}

// userMessage returns the message for a classified error, and a generic retry
// hint for anything else.
func userMessage(err error) string {
	if msg, ok := chaterr.Message(err); ok && chaterr.KindOf(err) != chaterr.Internal {
		return msg
	}
	return genericFailure
}

// decodeStrict decodes exactly one JSON value into v, rejecting unknown fields
// and trailing data.
func decodeStrict(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return chaterr.ErrInvalidPayload
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", chaterr.ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", chaterr.ErrInvalidPayload)
	}
	return nil
}
