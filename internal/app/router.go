// internal/app/router.go
package app

import (
	"net/http"

	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/guard"
	authHandler "helpdesk-dashboard/internal/handlers/auth"
	dashboardHandler "helpdesk-dashboard/internal/handlers/dashboard"
	notifyHandler "helpdesk-dashboard/internal/handlers/notification"
	wsHandler "helpdesk-dashboard/internal/handlers/websocket"
	"helpdesk-dashboard/internal/pkg/apiclient"

	"github.com/gin-gonic/gin"
)

// DashboardBase is where the authenticated dashboard lives.
const DashboardBase = "/dashboard"

type Handlers struct {
	AuthHandler      *authHandler.AuthHandler
	DashboardHandler *dashboardHandler.ResourceHandler
	NotifHandler     *notifyHandler.NotificationHandler
	WSHandler        *wsHandler.WebSocketHandler
	Guards           *guard.Guards
	RouteTable       *permission.RouteTable
	Session          gin.HandlerFunc
	Edge             gin.HandlerFunc
	Metrics          http.Handler
	SignInPath       string
	ForbiddenPath    string
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	// ==================== Health & Metrics ====================
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(h.Metrics))

	// Everything below sees the edge gate and a resolved session.
	app := r.Group("")
	app.Use(h.Edge, h.Session)

	// ==================== Public Pages ====================
	app.GET(h.SignInPath, h.AuthHandler.SignIn)
	app.GET(h.ForbiddenPath, h.AuthHandler.Forbidden)

	// ==================== Auth ====================
	app.POST(apiclient.LoginPath, h.AuthHandler.Login)
	app.POST(apiclient.LogoutPath, h.AuthHandler.Logout)
	app.GET("/api/session", h.AuthHandler.Session)

	// ==================== WebSocket ====================
	app.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Dashboard ====================
	dashboard := app.Group(DashboardBase)
	dashboard.Use(h.Guards.Routes(h.RouteTable))
	{
		dashboard.GET("", h.DashboardHandler.Home)
		dashboard.GET("/dialer", h.DashboardHandler.Dialer)

		// Notification panel
		dashboard.POST("/notifications", h.Guards.Page(permission.SendNotifications), h.NotifHandler.Send)
		dashboard.POST("/notifications/alerts", h.Guards.Page(permission.SendNotifications), h.NotifHandler.Alert)

		// Presence
		dashboard.GET("/presence", h.NotifHandler.Presence)
		dashboard.GET("/presence/stats", h.WSHandler.GetStats)
		dashboard.DELETE("/presence/:user_id", h.Guards.Page(permission.ManageSessions), h.NotifHandler.Disconnect)

		// Resources
		dashboard.GET("/:resource", h.DashboardHandler.List)
		dashboard.GET("/:resource/:id", h.DashboardHandler.Get)
		dashboard.POST("/:resource", h.DashboardHandler.Create)
		dashboard.PUT("/:resource/:id", h.DashboardHandler.Update)
		dashboard.DELETE("/:resource/:id", h.DashboardHandler.Delete)
	}
}
