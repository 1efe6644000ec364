package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RouterOptions configures NewRouter. A nil Redis disables rate limiting.
type RouterOptions struct {
	Logger          *logrus.Logger
	Redis           *redis.Client
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// NewRouter wires every route of the service.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(opts.Logger))

	r.GET("/health", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/", h.Auth())
	if opts.Redis != nil {
		api.Use(RateLimit(opts.Redis, opts.RateLimitMax, opts.RateLimitWindow, opts.Logger))
	}

	rooms := api.Group("/chatroom")
	{
		rooms.POST("/create", h.CreateRoom)
		rooms.GET("", h.ListRooms)
		rooms.GET("/:roomId/messages", h.GetRoomMessages)
		rooms.POST("/:roomId/send", h.SendMessage)
		rooms.DELETE("/:roomId", h.DeleteRoom)
		rooms.POST("/:roomId/participants", h.AddParticipant)
		rooms.DELETE("/:roomId/participants/me", h.LeaveRoom)
		rooms.DELETE("/:roomId/messages", h.ClearMessages)
	}

	invitations := api.Group("/chatroom-invitation")
	{
		invitations.POST("/invite", h.Invite)
		invitations.POST("/respond", h.RespondToInvitation)
		invitations.GET("/pending", h.PendingInvitations)
		invitations.GET("/find-user", h.FindUser)
	}

	return r
}
