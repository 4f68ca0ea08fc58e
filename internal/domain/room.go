package domain

import (
	"context"
	"time"
)

// RoomStatus is the lifecycle state of a chat room.
type RoomStatus string

const (
	RoomActive RoomStatus = "ACTIVE"
	RoomClosed RoomStatus = "CLOSED"
)

// ValidRoomStatus reports whether s is a known room status.
func ValidRoomStatus(s RoomStatus) bool {
	return s == RoomActive || s == RoomClosed
}

// Room is a 1:1 conversation bound to exactly one (farm, farmer, user)
// triple. FarmName, FarmerName and UserName are denormalized for views
// and populated by repository joins.
type Room struct {
	ID                 int64      `json:"roomId"`
	FarmID             int64      `json:"farmId"`
	FarmName           string     `json:"farmName"`
	FarmerID           int64      `json:"farmerId"`
	FarmerName         string     `json:"farmerName"`
	UserID             int64      `json:"userId"`
	UserName           string     `json:"userName"`
	Status             RoomStatus `json:"status"`
	LastMessageAt      *time.Time `json:"lastMessageAt"`
	LastMessagePreview *string    `json:"lastMessagePreview"`
	FarmerLastReadAt   *time.Time `json:"farmerLastReadAt"`
	UserLastReadAt     *time.Time `json:"userLastReadAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsParticipant reports whether memberID is the farmer or the user of
// this room. Only participants may act on a room.
func (r *Room) IsParticipant(memberID int64) bool {
	return memberID != 0 && (memberID == r.FarmerID || memberID == r.UserID)
}

// RoomRepository defines data access for chat rooms.
type RoomRepository interface {
	// Create inserts the room. It returns ErrRoomExists when the
	// (farm_id, farmer_id, user_id) unique constraint rejects the row.
	Create(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id int64) (*Room, error)
	GetByTriple(ctx context.Context, farmID, farmerID, userID int64) (*Room, error)
	// ListByMember returns rooms where memberID is farmer or user,
	// most recently updated first.
	ListByMember(ctx context.Context, memberID int64) ([]*Room, error)
	// MarkRead stores readAt in the participant's read-marker column.
	// A memberID that is not a participant is a no-op.
	MarkRead(ctx context.Context, roomID, memberID int64, readAt time.Time) error
	UpdateStatus(ctx context.Context, roomID int64, status RoomStatus) error
}
