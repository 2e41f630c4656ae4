package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qrchat/internal/apperr"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respond writes a success envelope.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, APIResponse{Success: true, Data: data})
}

// respondErr maps a domain error to its HTTP status, or 500 for anything
// unexpected. Validation field maps pass through so the caller can render
// per-field messages.
func respondErr(c *gin.Context, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		c.JSON(e.Code.HTTPStatus(), APIResponse{
			Success: false,
			Message: e.Message,
			Fields:  e.Fields,
		})
		return
	}
	log.Printf("server: internal error: %v", err)
	c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Message: "internal error",
	})
}

// respondBadRequest writes a 400 envelope for malformed request bodies.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: msg})
}
