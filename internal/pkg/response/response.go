// internal/pkg/response/response.go
package response

import (
	"net/http"
	"strconv"
	"time"

	xerrors "helpdesk-dashboard/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard response envelope returned to the dashboard.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// Abort first so later handlers never write protected content.
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// Upstream translates a backend failure into a response. The backend's own
// message is shown when present, otherwise fallback.
func Upstream(c *gin.Context, err error, fallback string) {
	status := xerrors.StatusOf(err)
	switch {
	case status >= 400 && status < 500:
	case xerrors.Is(err, xerrors.ErrSessionExpired):
		status = http.StatusUnauthorized
	default:
		status = http.StatusBadGateway
	}
	Error(c, status, xerrors.MessageOrDefault(err, fallback), nil)
}

// Wait answers while the session is still being validated. Nothing protected
// is rendered; the client is told to come back shortly.
func Wait(c *gin.Context, retryAfter time.Duration) {
	c.Abort()
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusServiceUnavailable)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
