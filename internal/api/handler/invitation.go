package handler

import (
	"net/http"

	"chatroom/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type inviteRequest struct {
	ChatRoomID       string `json:"chatRoomId" binding:"required"`
	InvitedUserEmail string `json:"invitedUserEmail" binding:"required"`
}

type respondRequest struct {
	InvitationID string `json:"invitationId" binding:"required"`
	Response     string `json:"response" binding:"required"`
}

// Invite handles POST /chatroom-invitation/invite.
func (h *Handler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "chatRoomId and invitedUserEmail are required")
		return
	}

	inv, err := h.Invitations.Invite(c.Request.Context(), req.ChatRoomID, currentUserID(c), req.InvitedUserEmail)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitationId": inv.ID, "message": "Invitation sent"})
}

// RespondToInvitation handles POST /chatroom-invitation/respond.
func (h *Handler) RespondToInvitation(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invitationId and response are required")
		return
	}

	out, err := h.Invitations.Resolve(c.Request.Context(), req.InvitationID, currentUserID(c), req.Response)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}

	if out.Status == models.InvitationAccepted {
		c.JSON(http.StatusOK, gin.H{
			"message":    "Invitation accepted",
			"chatRoomId": out.RoomID,
			"isPrivate":  out.IsPrivate,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation rejected"})
}

// PendingInvitations handles GET /chatroom-invitation/pending.
func (h *Handler) PendingInvitations(c *gin.Context) {
	pending, err := h.Invitations.ListPending(c.Request.Context(), currentUserID(c))
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pendingInvitations": pending, "count": len(pending)})
}

// FindUser handles GET /chatroom-invitation/find-user?email=.
func (h *Handler) FindUser(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		ErrorResponse(c, http.StatusBadRequest, "email query parameter is required")
		return
	}

	user, err := h.Invitations.FindUserByEmail(c.Request.Context(), email)
	if err != nil {
		HandleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Summary()})
}
