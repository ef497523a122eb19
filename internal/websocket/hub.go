// internal/websocket/hub.go
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	wstypes "helpdesk-dashboard/internal/domain/websocket"
	"helpdesk-dashboard/internal/pkg/metrics"

	"go.uber.org/zap"
)

type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	logger  *zap.Logger
	metrics *metrics.Metrics
	done    chan struct{}
}

type BroadcastMessage struct {
	UserIDs []string // nil means everyone
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		logger:          logger,
		metrics:         m,
		done:            make(chan struct{}),
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlerRegistry.Register(handler)
}

// HandleClientMessage delegates msg to its registered handler and reports
// whether one existed.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Register hands a connected client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client; it is a no-op once the hub stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.metrics.WSConnected()
	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID),
		zap.Int("total", total),
	)

	client.Subscribe(wstypes.ChannelSystem)
	client.Subscribe(wstypes.ChannelNotifications)
	client.Subscribe(wstypes.ChannelPresence)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id":      client.userID,
		"display_name": client.displayName,
		"permissions":  client.permissions.Strings(),
	}))
	h.broadcastPresence()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			removed = true
			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}
	total := h.totalClients()
	h.mu.Unlock()

	client.Close()
	if !removed {
		return
	}
	h.metrics.WSDisconnected()
	h.logger.Info("websocket client disconnected",
		zap.String("user_id", client.userID),
		zap.Int("total", total),
	)
	h.broadcastPresence()
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.UserIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, userID := range msg.UserIDs {
		for client := range h.clients[userID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// OnlineUsers returns the presence list ordered by user id.
func (h *Hub) OnlineUsers() []wstypes.PresenceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]wstypes.PresenceEntry, 0, len(h.clients))
	for userID, clients := range h.clients {
		entry := wstypes.PresenceEntry{UserID: userID, Connections: len(clients)}
		for client := range clients {
			if entry.Since.IsZero() || client.connectedAt.Before(entry.Since) {
				entry.Since = client.connectedAt
				entry.DisplayName = client.displayName
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (h *Hub) broadcastPresence() {
	h.BroadcastMessage(&BroadcastMessage{
		Channel: wstypes.ChannelPresence,
		Message: wstypes.NewMessage(wstypes.EventTypePresenceSnapshot, h.OnlineUsers()),
	})
}

func (h *Hub) ConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// Public methods for broadcasting

// BroadcastNotification pushes n to the given users, or everyone when
// userIDs is empty.
func (h *Hub) BroadcastNotification(userIDs []string, n *wstypes.NotificationData) {
	if len(userIDs) == 0 {
		userIDs = nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	msg := wstypes.NewMessage(wstypes.EventTypeNotification, n)
	if n.ID == "" {
		n.ID = msg.ID
	}
	h.enqueue(&BroadcastMessage{UserIDs: userIDs, Channel: wstypes.ChannelNotifications, Message: msg})
}

func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) {
	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert),
	})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(userID string) bool {
	return h.ConnectedClients(userID) > 0
}

// DisconnectUser tells every socket of userID to log out and closes them.
// It returns how many sockets were closed.
func (h *Hub) DisconnectUser(userID, reason string) int {
	h.mu.Lock()
	clients := h.clients[userID]
	delete(h.clients, userID)
	h.mu.Unlock()

	if len(clients) == 0 {
		return 0
	}

	notice := wstypes.NewMessage(wstypes.EventTypeForceLogout, wstypes.SessionEventData{
		Reason:  reason,
		Message: "You have been signed out",
	})
	for client := range clients {
		client.SendMessage(notice)
		client.Close()
		h.metrics.WSDisconnected()
	}

	h.logger.Info("disconnected user", zap.String("user_id", userID), zap.String("reason", reason), zap.Int("sockets", len(clients)))
	h.broadcastPresence()
	return len(clients)
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
			h.metrics.WSDisconnected()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
