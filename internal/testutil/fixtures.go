package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"eum-chat/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

func nextID() int64 {
	return idCounter.Add(1)
}

// MemberOptions allows customizing member fixture creation
type MemberOptions struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
}

// NewTestMember creates a test member with sensible defaults
func NewTestMember(opts ...func(*MemberOptions)) *domain.Member {
	o := &MemberOptions{
		ID:           nextID(),
		PasswordHash: "$2a$10$test.hash.for.testing.purposes.only",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Name == "" {
		o.Name = fmt.Sprintf("member%d", o.ID)
	}
	if o.Email == "" {
		o.Email = fmt.Sprintf("%s@example.com", o.Name)
	}
	return &domain.Member{
		ID:           o.ID,
		Name:         o.Name,
		Email:        o.Email,
		PasswordHash: o.PasswordHash,
		CreatedAt:    time.Now(),
	}
}

// WithMemberID overrides the member id
func WithMemberID(id int64) func(*MemberOptions) {
	return func(o *MemberOptions) { o.ID = id }
}

// WithMemberName overrides the member name
func WithMemberName(name string) func(*MemberOptions) {
	return func(o *MemberOptions) { o.Name = name }
}

// WithPasswordHash overrides the stored bcrypt hash
func WithPasswordHash(hash string) func(*MemberOptions) {
	return func(o *MemberOptions) { o.PasswordHash = hash }
}

// NewTestFarm creates a test farm owned by ownerID
func NewTestFarm(id, ownerID int64) *domain.Farm {
	return &domain.Farm{
		ID:      id,
		Name:    fmt.Sprintf("farm%d", id),
		OwnerID: ownerID,
	}
}

// RoomOptions allows customizing room fixture creation
type RoomOptions struct {
	ID       int64
	FarmID   int64
	FarmerID int64
	UserID   int64
	Status   domain.RoomStatus
}

// NewTestRoom creates a test room with sensible defaults
func NewTestRoom(opts ...func(*RoomOptions)) *domain.Room {
	o := &RoomOptions{
		ID:       nextID(),
		FarmID:   nextID(),
		FarmerID: nextID(),
		UserID:   nextID(),
		Status:   domain.RoomActive,
	}
	for _, opt := range opts {
		opt(o)
	}
	now := time.Now()
	return &domain.Room{
		ID:         o.ID,
		FarmID:     o.FarmID,
		FarmName:   fmt.Sprintf("farm%d", o.FarmID),
		FarmerID:   o.FarmerID,
		FarmerName: fmt.Sprintf("farmer%d", o.FarmerID),
		UserID:     o.UserID,
		UserName:   fmt.Sprintf("user%d", o.UserID),
		Status:     o.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithRoomID overrides the room id
func WithRoomID(id int64) func(*RoomOptions) {
	return func(o *RoomOptions) { o.ID = id }
}

// WithTriple sets the (farm, farmer, user) triple
func WithTriple(farmID, farmerID, userID int64) func(*RoomOptions) {
	return func(o *RoomOptions) {
		o.FarmID = farmID
		o.FarmerID = farmerID
		o.UserID = userID
	}
}

// WithStatus sets the room status
func WithStatus(status domain.RoomStatus) func(*RoomOptions) {
	return func(o *RoomOptions) { o.Status = status }
}

// NewTestMessage creates a test message in roomID from senderID
func NewTestMessage(roomID, senderID int64, content string) *domain.Message {
	return &domain.Message{
		ID:         nextID(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: fmt.Sprintf("member%d", senderID),
		Content:    content,
		CreatedAt:  time.Now(),
	}
}

// NewTestSession creates a live session for memberID
func NewTestSession(memberID int64, token string) *domain.Session {
	return &domain.Session{
		ID:        nextID(),
		MemberID:  memberID,
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}
}
