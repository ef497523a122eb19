// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"
	"strings"

	wstypes "helpdesk-dashboard/internal/domain/websocket"
	"helpdesk-dashboard/internal/middleware"
	"helpdesk-dashboard/internal/pkg/response"
	ws "helpdesk-dashboard/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewNotificationHandler(hub *ws.Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		hub:    hub,
		logger: logger,
	}
}

// SendRequest targets UserIDs, or every connected user when empty.
type SendRequest struct {
	UserIDs  []string               `json:"user_ids"`
	Title    string                 `json:"title" binding:"required,max=200"`
	Message  string                 `json:"message" binding:"required,max=2000"`
	Level    string                 `json:"level" binding:"omitempty,oneof=info success warning error"`
	Link     string                 `json:"link"`
	Metadata map[string]interface{} `json:"metadata"`
}

type AlertRequest struct {
	Severity  string `json:"severity" binding:"required,oneof=info warning critical"`
	Title     string `json:"title" binding:"required,max=200"`
	Message   string `json:"message" binding:"required,max=2000"`
	ActionURL string `json:"action_url"`
}

// Send pushes a notification to the notification panel of the given users.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "title and message are required", err)
		return
	}
	if req.Level == "" {
		req.Level = "info"
	}

	n := &wstypes.NotificationData{
		Title:    strings.TrimSpace(req.Title),
		Message:  req.Message,
		Level:    req.Level,
		Link:     req.Link,
		Metadata: req.Metadata,
	}
	h.hub.BroadcastNotification(req.UserIDs, n)

	h.logger.Info("notification sent",
		zap.String("sender", middleware.UserID(c)),
		zap.Int("recipients", len(req.UserIDs)),
		zap.String("level", req.Level),
	)
	response.Success(c, http.StatusAccepted, "notification queued", gin.H{
		"id":         n.ID,
		"recipients": req.UserIDs,
		"online":     h.onlineCount(req.UserIDs),
	})
}

// Alert broadcasts a system alert to every connected socket.
func (h *NotificationHandler) Alert(c *gin.Context) {
	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "severity, title and message are required", err)
		return
	}

	h.hub.BroadcastSystemAlert(&wstypes.SystemAlertData{
		Severity:  req.Severity,
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
	})
	response.Success(c, http.StatusAccepted, "alert queued", nil)
}

// Presence lists online users.
func (h *NotificationHandler) Presence(c *gin.Context) {
	users := h.hub.OnlineUsers()
	response.Success(c, http.StatusOK, "presence retrieved", gin.H{
		"users":       users,
		"count":       len(users),
		"connections": h.hub.TotalClients(),
	})
}

// Disconnect force-closes every socket of a user.
func (h *NotificationHandler) Disconnect(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		response.ValidationError(c, "user id is required", nil)
		return
	}

	closed := h.hub.DisconnectUser(userID, "disconnected by administrator")
	if closed == 0 {
		response.NotFound(c, "user has no active connections")
		return
	}

	h.logger.Info("user sockets disconnected",
		zap.String("by", middleware.UserID(c)),
		zap.String("user_id", userID),
		zap.Int("sockets", closed),
	)
	response.Success(c, http.StatusOK, "user disconnected", gin.H{"sockets": closed})
}

func (h *NotificationHandler) onlineCount(userIDs []string) int {
	if len(userIDs) == 0 {
		return len(h.hub.OnlineUsers())
	}
	online := 0
	for _, id := range userIDs {
		if h.hub.IsUserConnected(id) {
			online++
		}
	}
	return online
}
