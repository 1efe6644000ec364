package handler

import (
	"time"

	"chatroom/backend/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Auth verifies the bearer token on every request and stores the caller's id
// in the context.
func (h *Handler) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearer(c.GetHeader("Authorization"))
		if err != nil {
			h.log.WithError(err).WithField("path", c.FullPath()).Warn("Auth middleware: no usable bearer token")
			HandleServiceError(c, h.log, err)
			return
		}

		identity, err := h.Verifier.Verify(c.Request.Context(), token)
		if err != nil {
			h.log.WithError(err).WithField("path", c.FullPath()).Warn("Auth middleware: invalid token")
			HandleServiceError(c, h.log, err)
			return
		}

		c.Set(contextUserID, identity.UserID)
		h.log.WithField("user_id", identity.UserID).Debug("Auth middleware: user authenticated")
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if userID := c.GetString(contextUserID); userID != "" {
			entry = entry.WithField("user_id", userID)
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	}
}
