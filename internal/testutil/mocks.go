// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the eum-chat application.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"eum-chat/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
)

// MockRoomRepository implements domain.RoomRepository for testing
type MockRoomRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc       func(ctx context.Context, room *domain.Room) error
	GetByIDFunc      func(ctx context.Context, id int64) (*domain.Room, error)
	GetByTripleFunc  func(ctx context.Context, farmID, farmerID, userID int64) (*domain.Room, error)
	ListByMemberFunc func(ctx context.Context, memberID int64) ([]*domain.Room, error)
	MarkReadFunc     func(ctx context.Context, roomID, memberID int64, readAt time.Time) error
	UpdateStatusFunc func(ctx context.Context, roomID int64, status domain.RoomStatus) error

	// In-memory storage for simple tests
	Rooms  map[int64]*domain.Room
	nextID int64

	// MarkReadCalls records (roomID, memberID) pairs for assertion
	MarkReadCalls []int64
}

// NewMockRoomRepository creates a new MockRoomRepository with initialized maps
func NewMockRoomRepository() *MockRoomRepository {
	return &MockRoomRepository{
		Rooms: make(map[int64]*domain.Room),
	}
}

func (m *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, room)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.Rooms {
		if r.FarmID == room.FarmID && r.FarmerID == room.FarmerID && r.UserID == room.UserID {
			return domain.ErrRoomExists
		}
	}

	m.nextID++
	room.ID = m.nextID
	if room.Status == "" {
		room.Status = domain.RoomActive
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	room.UpdatedAt = room.CreatedAt
	m.Rooms[room.ID] = room
	return nil
}

func (m *MockRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if room, ok := m.Rooms[id]; ok {
		return room, nil
	}
	return nil, domain.ErrRoomNotFound
}

func (m *MockRoomRepository) GetByTriple(ctx context.Context, farmID, farmerID, userID int64) (*domain.Room, error) {
	if m.GetByTripleFunc != nil {
		return m.GetByTripleFunc(ctx, farmID, farmerID, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, room := range m.Rooms {
		if room.FarmID == farmID && room.FarmerID == farmerID && room.UserID == userID {
			return room, nil
		}
	}
	return nil, domain.ErrRoomNotFound
}

func (m *MockRoomRepository) ListByMember(ctx context.Context, memberID int64) ([]*domain.Room, error) {
	if m.ListByMemberFunc != nil {
		return m.ListByMemberFunc(ctx, memberID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rooms []*domain.Room
	for _, room := range m.Rooms {
		if room.FarmerID == memberID || room.UserID == memberID {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
	return rooms, nil
}

func (m *MockRoomRepository) MarkRead(ctx context.Context, roomID, memberID int64, readAt time.Time) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, roomID, memberID, readAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkReadCalls = append(m.MarkReadCalls, roomID, memberID)
	room, ok := m.Rooms[roomID]
	if !ok {
		return nil
	}
	switch memberID {
	case room.FarmerID:
		room.FarmerLastReadAt = &readAt
	case room.UserID:
		room.UserLastReadAt = &readAt
	}
	return nil
}

func (m *MockRoomRepository) UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, roomID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.Rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.Status = status
	room.UpdatedAt = time.Now()
	return nil
}

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	AppendFunc       func(ctx context.Context, message *domain.Message) error
	RecentByRoomFunc func(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error)

	Messages []*domain.Message
	nextID   int64
}

// NewMockMessageRepository creates a new MockMessageRepository
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{}
}

func (m *MockMessageRepository) Append(ctx context.Context, message *domain.Message) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	message.ID = m.nextID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockMessageRepository) RecentByRoom(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error) {
	if m.RecentByRoomFunc != nil {
		return m.RecentByRoomFunc(ctx, roomID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var inRoom []*domain.Message
	for _, msg := range m.Messages {
		if msg.RoomID == roomID {
			inRoom = append(inRoom, msg)
		}
	}
	if len(inRoom) > limit {
		inRoom = inRoom[len(inRoom)-limit:]
	}
	return inRoom, nil
}

// MockFarmDirectory implements domain.FarmDirectory for testing
type MockFarmDirectory struct {
	mu sync.RWMutex

	GetByIDFunc func(ctx context.Context, id int64) (*domain.Farm, error)

	Farms map[int64]*domain.Farm
}

// NewMockFarmDirectory creates a new MockFarmDirectory with initialized maps
func NewMockFarmDirectory() *MockFarmDirectory {
	return &MockFarmDirectory{
		Farms: make(map[int64]*domain.Farm),
	}
}

func (m *MockFarmDirectory) GetByID(ctx context.Context, id int64) (*domain.Farm, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if farm, ok := m.Farms[id]; ok {
		return farm, nil
	}
	return nil, domain.ErrFarmNotFound
}

// MockMemberDirectory implements domain.MemberDirectory for testing
type MockMemberDirectory struct {
	mu sync.RWMutex

	GetByIDFunc    func(ctx context.Context, id int64) (*domain.Member, error)
	GetByEmailFunc func(ctx context.Context, email string) (*domain.Member, error)

	Members map[int64]*domain.Member
}

// NewMockMemberDirectory creates a new MockMemberDirectory with initialized maps
func NewMockMemberDirectory() *MockMemberDirectory {
	return &MockMemberDirectory{
		Members: make(map[int64]*domain.Member),
	}
}

func (m *MockMemberDirectory) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if member, ok := m.Members[id]; ok {
		return member, nil
	}
	return nil, domain.ErrMemberNotFound
}

func (m *MockMemberDirectory) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, member := range m.Members {
		if member.Email == email {
			return member, nil
		}
	}
	return nil, domain.ErrMemberNotFound
}

// MockSessionRepository implements domain.SessionRepository for testing
type MockSessionRepository struct {
	mu sync.RWMutex

	CreateFunc        func(ctx context.Context, session *domain.Session) error
	GetByTokenFunc    func(ctx context.Context, token string) (*domain.Session, error)
	DeleteFunc        func(ctx context.Context, token string) error
	DeleteExpiredFunc func(ctx context.Context) (int64, error)

	Sessions map[string]*domain.Session
	nextID   int64
}

// NewMockSessionRepository creates a new MockSessionRepository with initialized maps
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[string]*domain.Session),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	session.ID = m.nextID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.Sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.Sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := time.Now()
	for token, session := range m.Sessions {
		if now.After(session.ExpiresAt) {
			delete(m.Sessions, token)
			count++
		}
	}
	return count, nil
}

// MockBroadcaster implements service.Broadcaster for testing
type MockBroadcaster struct {
	mu sync.Mutex

	PublishMessageFunc func(ctx context.Context, message *domain.Message) error

	Published []*domain.Message
}

// NewMockBroadcaster creates a new MockBroadcaster
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) PublishMessage(ctx context.Context, message *domain.Message) error {
	if m.PublishMessageFunc != nil {
		return m.PublishMessageFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Published = append(m.Published, message)
	return nil
}

// PublishedCount returns how many messages have been published
func (m *MockBroadcaster) PublishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}
