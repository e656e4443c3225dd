// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rally/internal/modules/arrival"
	"rally/internal/modules/event"
	"rally/internal/modules/location"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, event.ErrBadRequest), errors.Is(err, location.ErrBadPosition):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, event.ErrInvalidEvent), errors.Is(err, arrival.ErrInvalidEvent):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		// Store failures land here; the client may retry.
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
