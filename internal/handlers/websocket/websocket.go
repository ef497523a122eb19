// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"time"

	"helpdesk-dashboard/internal/middleware"
	"helpdesk-dashboard/internal/pkg/response"
	ws "helpdesk-dashboard/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts upgrades from the given origins. "*" allows any
// origin; requests without an Origin header are not browsers and pass.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades an authenticated session to a socket. The
// session middleware already resolved the cookies and confirmed the profile.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	st := sess.State()
	switch {
	case st.IsLoading():
		response.Wait(c, 2*time.Second)
		return
	case !st.IsAuthenticated() || st.User == nil:
		response.Unauthorized(c, "authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, &ws.ClientAuth{
		UserID:      st.User.ID,
		DisplayName: st.User.DisplayName,
		Permissions: st.Permissions,
	})
	h.hub.Register(client)

	h.logger.Info("WebSocket client connected",
		zap.String("user_id", st.User.ID),
		zap.String("username", st.User.Username),
		zap.Int("permissions", len(st.Permissions)),
	)

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns connection statistics.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "WebSocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"online_users":      len(h.hub.OnlineUsers()),
		"timestamp":         time.Now(),
	})
}
