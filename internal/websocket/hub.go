package websocket

import (
	"context"
	"log/slog"
	"strconv"

	"eum-chat/internal/observability"
)

// RoomMessage is a payload to fan out to one room topic.
type RoomMessage struct {
	RoomID  int64
	Payload []byte
}

type subscription struct {
	client *Client
	roomID int64
}

// Hub maintains live connections and their room subscriptions, and fans
// messages out to every subscriber of a room topic. One connection may
// subscribe to many rooms.
type Hub struct {
	// Subscribers by room id
	rooms map[int64]map[*Client]bool

	// All connected clients, for shutdown
	clients map[*Client]bool

	broadcast   chan *RoomMessage
	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscription
	unsubscribe chan *subscription

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[int64]map[*Client]bool),
		clients:     make(map[*Client]bool),
		broadcast:   make(chan *RoomMessage, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *subscription),
		unsubscribe: make(chan *subscription),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop. All subscription state is owned by
// this goroutine; no locks anywhere else.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			observability.WebSocketConnectionsActive.Inc()
			slog.Info("client connected",
				slog.Int64("member_id", client.memberID))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			if h.rooms[sub.roomID] == nil {
				h.rooms[sub.roomID] = make(map[*Client]bool)
			}
			h.rooms[sub.roomID][sub.client] = true
			observability.WebSocketSubscriptionsActive.WithLabelValues(roomLabel(sub.roomID)).Inc()
			slog.Info("client subscribed",
				slog.Int64("member_id", sub.client.memberID),
				slog.Int64("room_id", sub.roomID))

		case sub := <-h.unsubscribe:
			h.dropSubscription(sub.client, sub.roomID)

		case message := <-h.broadcast:
			clients, ok := h.rooms[message.RoomID]
			if !ok {
				continue
			}
			for client := range clients {
				select {
				case client.send <- message.Payload:
					observability.WebSocketMessagesSent.WithLabelValues(roomLabel(message.RoomID), "broadcast").Inc()
				default:
					// Client's send buffer is full, drop the connection
					h.unregisterClient(client)
				}
			}
		}
	}
}

// unregisterClient removes a client from every room it subscribed to.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	for roomID := range h.rooms {
		h.dropSubscription(client, roomID)
	}

	h.closeClientSend(client)
	observability.WebSocketConnectionsActive.Dec()
	slog.Info("client disconnected",
		slog.Int64("member_id", client.memberID))
}

func (h *Hub) dropSubscription(client *Client, roomID int64) {
	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	observability.WebSocketSubscriptionsActive.WithLabelValues(roomLabel(roomID)).Dec()

	if len(clients) == 0 {
		delete(h.rooms, roomID)
	}
}

// closeClientSend closes a client's send channel, which is what makes
// the client's WritePump exit and tear the connection down. Only the
// run goroutine closes, and h.clients membership guards both call
// sites, so each channel is closed exactly once. Buffered frames do not
// delay the close; a dropped client must see a closed channel, not a
// silent stall, so it can reconnect and resync.
func (h *Hub) closeClientSend(client *Client) {
	close(client.send)
}

// shutdown performs graceful cleanup of all connections.
func (h *Hub) shutdown() {
	close(h.done)

	for client := range h.clients {
		h.closeClientSend(client)
		slog.Info("closed client connection",
			slog.Int64("member_id", client.memberID))
	}

	slog.Info("hub shutdown complete")
}

// Broadcast sends a payload to every subscriber of a room topic.
func (h *Hub) Broadcast(roomID int64, payload []byte) {
	h.broadcast <- &RoomMessage{
		RoomID:  roomID,
		Payload: payload,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a connection and all its subscriptions.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a room topic. The caller has already
// verified the client is a participant of the room.
func (h *Hub) Subscribe(client *Client, roomID int64) {
	h.subscribe <- &subscription{client: client, roomID: roomID}
}

// Unsubscribe removes a client from a room topic.
func (h *Hub) Unsubscribe(client *Client, roomID int64) {
	h.unsubscribe <- &subscription{client: client, roomID: roomID}
}

func roomLabel(roomID int64) string {
	return strconv.FormatInt(roomID, 10)
}
