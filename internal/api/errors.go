// Package api provides HTTP handlers for the REST API endpoints.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

// abort writes an error response
func abort(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: code, Message: message})
}

// internalError writes a 500 and records the cause for the request logger
func internalError(c *gin.Context, err error, code, message string) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: code, Message: message})
}
