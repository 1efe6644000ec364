// Package handler is the HTTP and WebSocket surface of the service.
package handler

import (
	"net/http"

	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/chathub"
	"chatroom/backend/internal/chatroom"
	"chatroom/backend/internal/invitation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// contextUserID is the gin context key the Auth middleware stores the caller under.
const contextUserID = "user_id"

// Handler містить посилання на ChatHub та сервіси
type Handler struct {
	Hub         *chathub.ManagerService
	Rooms       *chatroom.Service
	Invitations *invitation.Service
	Verifier    *auth.Verifier

	log *logrus.Entry
}

func NewHandler(hub *chathub.ManagerService, rooms *chatroom.Service, invitations *invitation.Service, verifier *auth.Verifier, logger *logrus.Logger) *Handler {
	return &Handler{
		Hub:         hub,
		Rooms:       rooms,
		Invitations: invitations,
		Verifier:    verifier,
		log:         logger.WithField("component", "http"),
	}
}

// currentUserID returns the authenticated caller. Routes behind Auth always
// have one.
func currentUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
