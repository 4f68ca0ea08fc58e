package handler

import (
	"context"
	"log/slog"
	"net/http"

	"eum-chat/internal/middleware"
	"eum-chat/internal/service"
	ws "eum-chat/internal/websocket"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades authenticated requests to live chat
// connections. Identity is captured once at the handshake; room
// subscriptions arrive later over the connection itself.
type WebSocketHandler struct {
	hub         *ws.Hub
	messages    *service.MessageService
	rooms       *service.RoomService
	authService *service.AuthService
	presence    ws.PresenceTracker
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. allowedOrigins
// is matched against the Origin header; an empty list allows all
// origins (development mode).
func NewWebSocketHandler(hub *ws.Hub, messages *service.MessageService, rooms *service.RoomService,
	authService *service.AuthService, presence ws.PresenceTracker, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		messages:    messages,
		rooms:       rooms,
		authService: authService,
		presence:    presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin header.
		return origin == "" || set[origin]
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	member, err := h.authService.GetMemberByID(r.Context(), memberID)
	if err != nil {
		http.Error(w, `{"error":"Member not found"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context dies when this handler returns; the client
	// outlives it, so it gets its own lifetime.
	client := ws.NewClient(context.Background(), h.hub, conn, member.ID, member.Name, h.messages, h.rooms, h.presence)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
