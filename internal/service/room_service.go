package service

import (
	"context"
	"errors"
	"fmt"

	"eum-chat/internal/domain"
)

// RoomService owns room lifecycle: idempotent creation keyed on the
// (farm, farmer, user) triple, listing, read markers and status changes.
// Both transport adapters call into this service; neither carries
// business rules of its own.
type RoomService struct {
	roomRepo  domain.RoomRepository
	farms     domain.FarmDirectory
	members   domain.MemberDirectory
}

func NewRoomService(roomRepo domain.RoomRepository, farms domain.FarmDirectory, members domain.MemberDirectory) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		farms:    farms,
		members:  members,
	}
}

// EnsureRoom returns the room for the triple, creating it on first
// request. Two callers racing to create the same triple both succeed
// with the same room: the losing insert hits the unique constraint and
// re-fetches the winner's row exactly once.
func (s *RoomService) EnsureRoom(ctx context.Context, requesterID, farmID, farmerID, userID int64) (*domain.Room, error) {
	if requesterID == 0 {
		return nil, domain.ErrUnauthenticated
	}

	existing, err := s.roomRepo.GetByTriple(ctx, farmID, farmerID, userID)
	if err == nil {
		if !existing.IsParticipant(requesterID) {
			return nil, domain.ErrNotParticipant
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, err
	}

	farm, err := s.farms.GetByID(ctx, farmID)
	if err != nil {
		return nil, err
	}
	farmer, err := s.members.GetByID(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	user, err := s.members.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if farm.OwnerID != farmerID {
		return nil, domain.ErrFarmOwnerMismatch
	}
	if requesterID != farmerID && requesterID != userID {
		return nil, domain.ErrNotParticipant
	}

	room := &domain.Room{
		FarmID:     farmID,
		FarmName:   farm.Name,
		FarmerID:   farmerID,
		FarmerName: farmer.Name,
		UserID:     userID,
		UserName:   user.Name,
		Status:     domain.RoomActive,
	}

	err = s.roomRepo.Create(ctx, room)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, domain.ErrRoomExists) {
		return nil, err
	}

	// Lost the creation race: the winner's row is our success result.
	winner, err := s.roomRepo.GetByTriple(ctx, farmID, farmerID, userID)
	if err != nil {
		return nil, fmt.Errorf("room insert conflicted but refetch failed: %w", err)
	}
	if !winner.IsParticipant(requesterID) {
		return nil, domain.ErrNotParticipant
	}
	return winner, nil
}

// MyRooms lists all rooms the requester participates in, most recently
// updated first.
func (s *RoomService) MyRooms(ctx context.Context, requesterID int64) ([]*domain.Room, error) {
	if requesterID == 0 {
		return nil, domain.ErrUnauthenticated
	}
	return s.roomRepo.ListByMember(ctx, requesterID)
}

// LoadForParticipant fetches a room and verifies the member may act on it.
func (s *RoomService) LoadForParticipant(ctx context.Context, roomID, memberID int64) (*domain.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(memberID) {
		return nil, domain.ErrNotParticipant
	}
	return room, nil
}

// ChangeStatus moves a room between ACTIVE and CLOSED. Participants only;
// both directions are always permitted.
func (s *RoomService) ChangeStatus(ctx context.Context, roomID int64, status domain.RoomStatus, requesterID int64) (*domain.Room, error) {
	if requesterID == 0 {
		return nil, domain.ErrUnauthenticated
	}
	if !domain.ValidRoomStatus(status) {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.LoadForParticipant(ctx, roomID, requesterID); err != nil {
		return nil, err
	}
	if err := s.roomRepo.UpdateStatus(ctx, roomID, status); err != nil {
		return nil, err
	}
	return s.roomRepo.GetByID(ctx, roomID)
}
