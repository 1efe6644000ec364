package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chatroom/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
	sendBuffer     = 256
	eventTimeout   = 10 * time.Second
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	UserID string
	ConnID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.ServerEvent

	closeOnce sync.Once
	log       *logrus.Entry
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID string) *WebSocketClient {
	connID := uuid.New().String()
	return &WebSocketClient{
		UserID: userID,
		ConnID: connID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.ServerEvent, sendBuffer),
		log:    hub.log.WithFields(logrus.Fields{"conn_id": connID, "user_id": userID}),
	}
}

func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) GetConnID() string                         { return c.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerEvent { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("Unexpected websocket close")
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.Hub.HandleEvent(ctx, c, frame)
		cancel()
	}
}

// writePump пише події з каналу Send у WebSocket, по одному кадру на подію.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frame, err := json.Marshal(ev)
			if err != nil {
				c.log.WithError(err).WithField("event", ev.Event).Error("Failed to encode event")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RejectConnection writes a single auth_error event to an upgraded connection
// and closes it with a policy-violation status.
func RejectConnection(conn *websocket.Conn, message string) {
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(models.ServerEvent{
		Event: models.EventAuthError,
		Data:  models.EventErrorPayload{Message: message},
	})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
