package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"eum-chat/internal/domain"
	"eum-chat/internal/middleware"
	"eum-chat/internal/service"
	"eum-chat/internal/testutil"
	ws "eum-chat/internal/websocket"
)

// hubBroadcaster delivers persisted messages straight into the local
// hub, standing in for the broker relay.
type hubBroadcaster struct {
	hub *ws.Hub
}

func (b *hubBroadcaster) PublishMessage(ctx context.Context, message *domain.Message) error {
	payload, err := ws.MarshalMessageFrame(message)
	if err != nil {
		return err
	}
	b.hub.Broadcast(message.RoomID, payload)
	return nil
}

type wsFixture struct {
	handler  *WebSocketHandler
	hub      *ws.Hub
	roomRepo *testutil.MockRoomRepository
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	roomRepo := testutil.NewMockRoomRepository()
	messageRepo := testutil.NewMockMessageRepository()
	farms := testutil.NewMockFarmDirectory()
	members := testutil.NewMockMemberDirectory()
	sessions := testutil.NewMockSessionRepository()

	farms.Farms[10] = testutil.NewTestFarm(10, 1)
	members.Members[1] = testutil.NewTestMember(testutil.WithMemberID(1), testutil.WithMemberName("farmer"))
	members.Members[2] = testutil.NewTestMember(testutil.WithMemberID(2), testutil.WithMemberName("buyer"))
	members.Members[3] = testutil.NewTestMember(testutil.WithMemberID(3), testutil.WithMemberName("stranger"))

	rooms := service.NewRoomService(roomRepo, farms, members)
	messages := service.NewMessageService(messageRepo, roomRepo, members, &hubBroadcaster{hub: hub}, false)
	auth := service.NewAuthService(members, sessions)

	return &wsFixture{
		handler:  NewWebSocketHandler(hub, messages, rooms, auth, nil, nil),
		hub:      hub,
		roomRepo: roomRepo,
	}
}

func (f *wsFixture) seedRoom(id int64) *domain.Room {
	room := testutil.NewTestRoom(testutil.WithRoomID(id), testutil.WithTriple(10, 1, 2))
	f.roomRepo.Rooms[id] = room
	return room
}

// dial upgrades a real connection as the given member.
func (f *wsFixture) dial(t *testing.T, memberID int64) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(middleware.WithMemberID(r.Context(), memberID))
		f.handler.HandleConnection(w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type serverFrame struct {
	Type       string `json:"type"`
	RoomID     int64  `json:"roomId"`
	Content    string `json:"content"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame ws.ClientFrame) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var frame serverFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("failed to decode frame %q: %v", raw, err)
	}
	return frame
}

func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %q", raw)
	}
}

func TestWebSocketHandler_Unauthenticated(t *testing.T) {
	f := newWSFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	w := httptest.NewRecorder()

	f.handler.HandleConnection(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
	if !strings.Contains(w.Body.String(), "Not authenticated") {
		t.Errorf("expected auth error body, got %q", w.Body.String())
	}
}

func TestWebSocketHandler_UnknownMember(t *testing.T) {
	f := newWSFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req = req.WithContext(middleware.WithMemberID(req.Context(), 99))
	w := httptest.NewRecorder()

	f.handler.HandleConnection(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
	if !strings.Contains(w.Body.String(), "Member not found") {
		t.Errorf("expected member error body, got %q", w.Body.String())
	}
}

// A failed send produces a private error frame and leaves the
// connection fully usable.
func TestWebSocketHandler_SendFailureKeepsConnectionOpen(t *testing.T) {
	f := newWSFixture(t)
	f.seedRoom(5)

	conn := f.dial(t, 2)

	writeFrame(t, conn, ws.ClientFrame{Type: "send", RoomID: 999, Content: "hi"})

	frame := readFrame(t, conn)
	testutil.AssertEqual(t, frame.Type, "error")
	testutil.AssertEqual(t, frame.RoomID, int64(999))
	if !strings.Contains(frame.Message, "room not found") {
		t.Errorf("expected room-not-found message, got %q", frame.Message)
	}

	// Same connection keeps working after the failure.
	writeFrame(t, conn, ws.ClientFrame{Type: "subscribe", RoomID: 5})
	writeFrame(t, conn, ws.ClientFrame{Type: "send", RoomID: 5, Content: "still here"})

	frame = readFrame(t, conn)
	testutil.AssertEqual(t, frame.Type, "message")
	testutil.AssertEqual(t, frame.RoomID, int64(5))
	testutil.AssertEqual(t, frame.Content, "still here")
	testutil.AssertEqual(t, frame.SenderName, "buyer")
}

func TestWebSocketHandler_SubscribeRequiresParticipant(t *testing.T) {
	f := newWSFixture(t)
	f.seedRoom(5)

	conn := f.dial(t, 3)

	writeFrame(t, conn, ws.ClientFrame{Type: "subscribe", RoomID: 5})

	frame := readFrame(t, conn)
	testutil.AssertEqual(t, frame.Type, "error")
	testutil.AssertEqual(t, frame.RoomID, int64(5))
	if !strings.Contains(frame.Message, "participants") {
		t.Errorf("expected participant error, got %q", frame.Message)
	}

	// The rejected subscription must not leak topic traffic.
	f.hub.Broadcast(5, []byte(`{"type":"message","roomId":5}`))
	expectNoFrame(t, conn)
}

// Error frames go only to the offending caller, never to the topic.
func TestWebSocketHandler_ErrorFramesArePrivate(t *testing.T) {
	f := newWSFixture(t)
	f.seedRoom(5)

	farmer := f.dial(t, 1)
	buyer := f.dial(t, 2)

	writeFrame(t, farmer, ws.ClientFrame{Type: "subscribe", RoomID: 5})
	writeFrame(t, buyer, ws.ClientFrame{Type: "subscribe", RoomID: 5})

	// Buyer sends an empty message; only the buyer hears about it.
	writeFrame(t, buyer, ws.ClientFrame{Type: "send", RoomID: 5, Content: "   "})

	frame := readFrame(t, buyer)
	testutil.AssertEqual(t, frame.Type, "error")
	expectNoFrame(t, farmer)
}

func TestOriginChecker(t *testing.T) {
	withOrigin := func(origin string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	t.Run("empty_list_allows_all", func(t *testing.T) {
		check := originChecker(nil)
		if !check(withOrigin("http://anywhere.example.com")) {
			t.Error("expected any origin to be allowed")
		}
	})

	t.Run("listed_origin_allowed", func(t *testing.T) {
		check := originChecker([]string{"http://localhost:3000"})
		if !check(withOrigin("http://localhost:3000")) {
			t.Error("expected listed origin to be allowed")
		}
		if check(withOrigin("http://evil.example.com")) {
			t.Error("expected unlisted origin to be rejected")
		}
	})

	t.Run("no_origin_header_allowed", func(t *testing.T) {
		check := originChecker([]string{"http://localhost:3000"})
		if !check(withOrigin("")) {
			t.Error("expected non-browser client without Origin to be allowed")
		}
	})
}
