package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/umedi/intake-api/pkg/errors"
)

const (
	MessageBadRequest  = "bad request"
	MessageNoItems     = "no items"
	MessageServerError = "server error"
)

// MessageResponse is the only body shape returned on failure.
type MessageResponse struct {
	Message string `json:"message"`
}

// RespondError maps err onto a status and a generic message. Only validation
// messages are passed through; everything else hides internal detail.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: MessageServerError})
		return
	}

	status := appErr.StatusCode()
	switch status {
	case http.StatusBadRequest:
		c.JSON(status, MessageResponse{Message: appErr.Message})
	case http.StatusNotFound:
		c.JSON(status, MessageResponse{Message: MessageNoItems})
	default:
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: MessageServerError})
	}
}

// BadRequest answers with 400 and the generic message.
func BadRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, MessageResponse{Message: MessageBadRequest})
}
