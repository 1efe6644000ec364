package handler

import (
	"net/http"
	"strconv"

	"chatroom/backend/internal/chaterr"
	"chatroom/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type addParticipantRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

var errInvalidBody = chaterr.New(chaterr.InvalidInput, "invalid request body")

// CreateRoom handles POST /chatroom/create.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, h.log, errInvalidBody)
		return
	}

	room, err := h.Rooms.CreateRoom(c.Request.Context(), currentUserID(c), req.Name, req.IsPrivate)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// ListRooms handles GET /chatroom.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Rooms.ListRoomsForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	if rooms == nil {
		rooms = []models.ChatRoom{}
	}
	c.JSON(http.StatusOK, gin.H{"chatRooms": rooms})
}

// GetRoomMessages handles GET /chatroom/:roomId/messages.
func (h *Handler) GetRoomMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ErrorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	room, messages, err := h.Rooms.GetRoomMessages(c.Request.Context(), c.Param("roomId"), currentUserID(c), limit)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "messages": messages})
}

// SendMessage handles POST /chatroom/:roomId/send.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, h.log, errInvalidBody)
		return
	}

	msg, err := h.Rooms.SendMessage(c.Request.Context(), c.Param("roomId"), currentUserID(c), req.Content)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chatMessage": msg})
}

// DeleteRoom handles DELETE /chatroom/:roomId.
func (h *Handler) DeleteRoom(c *gin.Context) {
	res, err := h.Rooms.DeleteRoom(c.Request.Context(), c.Param("roomId"), currentUserID(c))
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddParticipant handles POST /chatroom/:roomId/participants.
func (h *Handler) AddParticipant(c *gin.Context) {
	var req addParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "participantId is required")
		return
	}

	room, err := h.Rooms.AddParticipant(c.Request.Context(), c.Param("roomId"), currentUserID(c), req.ParticipantID)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// LeaveRoom handles DELETE /chatroom/:roomId/participants/me.
func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, userID := c.Param("roomId"), currentUserID(c)
	if err := h.Rooms.RemoveParticipant(c.Request.Context(), roomID, userID); err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "userId": userID})
}

// ClearMessages handles DELETE /chatroom/:roomId/messages.
func (h *Handler) ClearMessages(c *gin.Context) {
	deleted, err := h.Rooms.ClearMessages(c.Request.Context(), c.Param("roomId"), currentUserID(c))
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": deleted})
}
