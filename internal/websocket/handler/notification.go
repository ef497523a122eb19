// internal/websocket/handler/notification.go
package handler

import (
	"context"
	"fmt"

	wstypes "helpdesk-dashboard/internal/domain/websocket"
	ws "helpdesk-dashboard/internal/websocket"
)

// NotificationHandler keeps a user's tabs in sync when one of them marks a
// notification read.
type NotificationHandler struct {
	hub *ws.Hub
}

func NewNotificationHandler(hub *ws.Hub) *NotificationHandler {
	return &NotificationHandler{hub: hub}
}

func (h *NotificationHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeNotificationRead}
}

func (h *NotificationHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeNotificationRead:
		return h.handleMarkAsRead(ctx, client, msg)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *NotificationHandler) handleMarkAsRead(_ context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req struct {
		NotificationID string `json:"notification_id"`
	}
	if err := msg.DecodeData(&req); err != nil {
		return err
	}
	if req.NotificationID == "" {
		return fmt.Errorf("notification_id is required")
	}

	h.hub.BroadcastMessage(&ws.BroadcastMessage{
		UserIDs: []string{client.UserID()},
		Channel: wstypes.ChannelNotifications,
		Message: wstypes.NewMessage(wstypes.EventTypeNotificationRead, map[string]interface{}{
			"notification_id": req.NotificationID,
		}),
	})
	return nil
}
