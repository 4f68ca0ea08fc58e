package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"eum-chat/internal/domain"
	"eum-chat/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
)

// PresenceTracker records which members are live in which rooms.
// Best-effort: failures are logged, never surfaced to the caller.
type PresenceTracker interface {
	Join(ctx context.Context, roomID, memberID int64) error
	Leave(ctx context.Context, roomID, memberID int64) error
	Refresh(ctx context.Context, roomID int64) error
}

// Client is one live connection. The member identity is captured once at
// handshake time and never re-derived per frame.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	memberID   int64
	memberName string

	messages *service.MessageService
	rooms    *service.RoomService
	presence PresenceTracker

	// Rooms this connection subscribed to; touched only by the read
	// pump goroutine.
	subscribed map[int64]bool

	writeMu sync.Mutex
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// ClientFrame is what a connection sends to the server.
type ClientFrame struct {
	Type    string `json:"type"` // "subscribe", "unsubscribe" or "send"
	RoomID  int64  `json:"roomId"`
	Content string `json:"content,omitempty"`
}

// messageFrame is a persisted message fanned out on a room topic.
type messageFrame struct {
	Type string `json:"type"`
	*domain.Message
}

// errorFrame goes to exactly one caller's connection, never to a topic.
type errorFrame struct {
	Type    string `json:"type"`
	RoomID  int64  `json:"roomId,omitempty"`
	Message string `json:"message"`
}

// MarshalMessageFrame encodes a persisted message as a topic frame.
func MarshalMessageFrame(message *domain.Message) ([]byte, error) {
	return json.Marshal(messageFrame{Type: "message", Message: message})
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, memberID int64, memberName string,
	messages *service.MessageService, rooms *service.RoomService, presence PresenceTracker) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		memberID:   memberID,
		memberName: memberName,
		messages:   messages,
		rooms:      rooms,
		presence:   presence,
		subscribed: make(map[int64]bool),
		ctx:        clientCtx,
		cancel:     cancel,
	}
}

// ReadPump reads frames from the connection and funnels them into the
// chat services. A failed frame produces a private error frame for this
// caller only; the connection and the room topics stay up.
func (c *Client) ReadPump() {
	defer func() {
		for roomID := range c.subscribed {
			c.leavePresence(roomID)
		}
		c.cancel()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.Int64("member_id", c.memberID))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		// Pong handlers run on this goroutine, so touching the
		// subscription set here is safe.
		if c.presence != nil {
			ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
			for roomID := range c.subscribed {
				if err := c.presence.Refresh(ctx, roomID); err != nil {
					slog.Debug("presence refresh failed",
						slog.Int64("room_id", roomID),
						slog.String("error", err.Error()))
				}
			}
			cancel()
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.Int64("member_id", c.memberID))
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Warn("invalid frame format",
				slog.String("error", err.Error()),
				slog.Int64("member_id", c.memberID))
			c.sendError(0, "invalid frame format")
			continue
		}

		switch frame.Type {
		case "subscribe":
			c.handleSubscribe(frame.RoomID)
		case "unsubscribe":
			c.handleUnsubscribe(frame.RoomID)
		case "send":
			c.handleSend(frame.RoomID, frame.Content)
		default:
			c.sendError(frame.RoomID, "unknown frame type: "+frame.Type)
		}
	}
}

// handleSubscribe attaches this connection to topic room:{roomID} after
// verifying the member participates in the room.
func (c *Client) handleSubscribe(roomID int64) {
	if c.subscribed[roomID] {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	if _, err := c.rooms.LoadForParticipant(ctx, roomID, c.memberID); err != nil {
		c.sendFailure(roomID, err)
		return
	}

	c.subscribed[roomID] = true
	c.hub.Subscribe(c, roomID)

	if c.presence != nil {
		if err := c.presence.Join(ctx, roomID, c.memberID); err != nil {
			slog.Warn("presence join failed",
				slog.Int64("room_id", roomID),
				slog.Int64("member_id", c.memberID),
				slog.String("error", err.Error()))
		}
	}
}

func (c *Client) handleUnsubscribe(roomID int64) {
	if !c.subscribed[roomID] {
		return
	}
	delete(c.subscribed, roomID)
	c.hub.Unsubscribe(c, roomID)
	c.leavePresence(roomID)
}

// handleSend persists the message through the shared gateway operation.
// Fan-out to the topic happens via the broadcaster inside the service,
// so the REST adapter and this one can never diverge.
func (c *Client) handleSend(roomID int64, content string) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	if _, err := c.messages.Send(ctx, c.memberID, roomID, content); err != nil {
		slog.Warn("send failed",
			slog.Int64("room_id", roomID),
			slog.Int64("member_id", c.memberID),
			slog.String("error", err.Error()))
		c.sendFailure(roomID, err)
	}
}

// sendFailure converts err into a private error frame for this caller.
func (c *Client) sendFailure(roomID int64, err error) {
	if domain.IsFailure(err) {
		c.sendError(roomID, err.Error())
		return
	}
	c.sendError(roomID, "internal error")
}

func (c *Client) sendError(roomID int64, message string) {
	data, err := json.Marshal(errorFrame{Type: "error", RoomID: roomID, Message: message})
	if err != nil {
		slog.Error("failed to marshal error frame", slog.String("error", err.Error()))
		return
	}
	select {
	case c.send <- data:
	default:
		// Buffer full; the hub will drop this connection shortly.
	}
}

func (c *Client) leavePresence(roomID int64) {
	if c.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.presence.Leave(ctx, roomID, c.memberID); err != nil {
		slog.Warn("presence leave failed",
			slog.Int64("room_id", roomID),
			slog.Int64("member_id", c.memberID),
			slog.String("error", err.Error()))
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the connection in a thread-safe manner.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection.
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
