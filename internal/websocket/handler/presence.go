// internal/websocket/handler/presence.go
package handler

import (
	"context"

	"helpdesk-dashboard/internal/domain/permission"
	wstypes "helpdesk-dashboard/internal/domain/websocket"
	ws "helpdesk-dashboard/internal/websocket"
)

// PresenceHandler answers on-demand presence queries.
type PresenceHandler struct {
	hub *ws.Hub
}

func NewPresenceHandler(hub *ws.Hub) *PresenceHandler {
	return &PresenceHandler{hub: hub}
}

func (h *PresenceHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypePresenceList}
}

func (h *PresenceHandler) HandleMessage(_ context.Context, client *ws.Client, _ *wstypes.WSMessage) error {
	if !client.HasPermission(permission.ViewPresence) {
		return ws.ErrChannelForbidden
	}
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypePresenceSnapshot, h.hub.OnlineUsers()))
	return nil
}
