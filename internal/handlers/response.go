package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in the response envelope so callers can branch
// without parsing the message text.
const (
	CodeMalformedBatch   = "malformed_batch"
	CodeQueueUnavailable = "queue_unavailable"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
