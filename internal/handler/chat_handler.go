package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"eum-chat/internal/domain"
	"eum-chat/internal/middleware"
	"eum-chat/internal/service"

	"github.com/go-chi/chi/v5"
)

// OnlineLister reports which members are currently live in a room.
type OnlineLister interface {
	Online(ctx context.Context, roomID int64) ([]int64, error)
}

// ChatHandler is the request/response adapter over the chat services.
// It only parses, delegates and maps failures; the business rules live
// in the services it shares with the live-channel adapter.
type ChatHandler struct {
	rooms    *service.RoomService
	messages *service.MessageService
	online   OnlineLister
}

// NewChatHandler creates a new chat REST handler. online may be nil when
// presence tracking is disabled.
func NewChatHandler(rooms *service.RoomService, messages *service.MessageService, online OnlineLister) *ChatHandler {
	return &ChatHandler{
		rooms:    rooms,
		messages: messages,
		online:   online,
	}
}

// CreateRoomRequest identifies the (farm, farmer, user) triple to ensure
// a room for.
type CreateRoomRequest struct {
	FarmID   int64 `json:"farmId"`
	FarmerID int64 `json:"farmerId"`
	UserID   int64 `json:"userId"`
}

// SendMessageRequest carries one outgoing message. RoomID is optional;
// when present it must match the path.
type SendMessageRequest struct {
	RoomID  int64  `json:"roomId,omitempty"`
	Content string `json:"content"`
}

// ChangeStatusRequest moves a room between ACTIVE and CLOSED.
type ChangeStatusRequest struct {
	Status domain.RoomStatus `json:"status"`
}

// roomListEntry is a room plus the member ids currently live in it.
type roomListEntry struct {
	*domain.Room
	Online []int64 `json:"online,omitempty"`
}

// EnsureRoom handles POST /chat/rooms: returns the room for the triple,
// creating it on first request. Idempotent, always 200 on success.
func (h *ChatHandler) EnsureRoom(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		writeFailure(w, domain.ErrUnauthenticated)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.FarmID == 0 || req.FarmerID == 0 || req.UserID == 0 {
		http.Error(w, `{"error":"farmId, farmerId and userId are required"}`, http.StatusBadRequest)
		return
	}

	room, err := h.rooms.EnsureRoom(r.Context(), memberID, req.FarmID, req.FarmerID, req.UserID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// MyRooms handles GET /chat/rooms: every room the caller participates
// in, most recently updated first, annotated with live participants.
func (h *ChatHandler) MyRooms(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		writeFailure(w, domain.ErrUnauthenticated)
		return
	}

	rooms, err := h.rooms.MyRooms(r.Context(), memberID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	entries := make([]roomListEntry, 0, len(rooms))
	for _, room := range rooms {
		entry := roomListEntry{Room: room}
		if h.online != nil {
			online, err := h.online.Online(r.Context(), room.ID)
			if err != nil {
				slog.Debug("presence lookup failed",
					slog.Int64("room_id", room.ID),
					slog.String("error", err.Error()))
			} else {
				entry.Online = online
			}
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, entries)
}

// RecentMessages handles GET /chat/rooms/{roomId}/messages: up to 50 of
// the newest messages, oldest first.
func (h *ChatHandler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		writeFailure(w, domain.ErrUnauthenticated)
		return
	}

	roomID, err := roomIDParam(r)
	if err != nil {
		writeFailure(w, domain.ErrInvalidInput)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	messages, err := h.messages.Recent(r.Context(), memberID, roomID, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// PostMessage handles POST /chat/rooms/{roomId}/messages. A body roomId,
// when present, must match the path.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		writeFailure(w, domain.ErrUnauthenticated)
		return
	}

	roomID, err := roomIDParam(r)
	if err != nil {
		writeFailure(w, domain.ErrInvalidInput)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.RoomID != 0 && req.RoomID != roomID {
		http.Error(w, `{"error":"path and body roomId do not match"}`, http.StatusBadRequest)
		return
	}

	message, err := h.messages.Send(r.Context(), memberID, roomID, req.Content)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}

// ChangeStatus handles PATCH /chat/rooms/{roomId}/status.
func (h *ChatHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		writeFailure(w, domain.ErrUnauthenticated)
		return
	}

	roomID, err := roomIDParam(r)
	if err != nil {
		writeFailure(w, domain.ErrInvalidInput)
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	room, err := h.rooms.ChangeStatus(r.Context(), roomID, req.Status, memberID)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func roomIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "roomId"), 10, 64)
}
