package handler

import (
	"context"
	"net/http"
	"time"

	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const handshakeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades GET /ws. The token comes from the Authorization
// header or the "token" query parameter; an optional "room" parameter joins
// that room right after authentication.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if header := c.GetHeader("Authorization"); header != "" {
		if bearer, err := auth.ExtractBearer(header); err == nil {
			token = bearer
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	identity, err := h.Verifier.Verify(ctx, token)
	if err != nil {
		h.log.WithError(err).WithField("ip", c.ClientIP()).Warn("WebSocket handshake rejected")
		msg, ok := chaterr.Message(err)
		if !ok || chaterr.KindOf(err) != chaterr.AuthFailure {
			msg = "Authentication failed"
		}
		chathub.RejectConnection(conn, msg)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, identity.UserID)
	h.Hub.Register(client)
	client.Run()

	h.log.WithFields(logrus.Fields{"conn_id": client.GetConnID(), "user_id": identity.UserID}).Info("WebSocket connected")

	if room := c.Query("room"); room != "" {
		_ = h.Hub.JoinRoom(ctx, client, room)
	}
}
