package handler

import (
	"net/http"

	"chatroom/backend/internal/chaterr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "An unexpected error occurred, please try again"

// StatusFor maps an error's kind to an HTTP status.
func StatusFor(err error) int {
	switch chaterr.KindOf(err) {
	case chaterr.NotFound:
		return http.StatusNotFound
	case chaterr.Forbidden:
		return http.StatusForbidden
	case chaterr.InvalidInput, chaterr.Conflict, chaterr.Expired:
		return http.StatusBadRequest
	case chaterr.AuthFailure:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError writes err as a JSON error response. Unclassified errors
// are logged and hidden behind a generic message.
func HandleServiceError(c *gin.Context, log *logrus.Entry, err error) {
	status := StatusFor(err)
	msg, ok := chaterr.Message(err)
	if status == http.StatusInternalServerError || !ok {
		log.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	ErrorResponse(c, status, msg)
}

func ErrorResponse(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
