package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"eum-chat/internal/domain"
)

const defaultRecentLimit = 50

// Broadcaster fans a persisted message out to live subscribers of the
// room's topic. Delivery is best-effort; the durable log is
// authoritative and reconnecting clients resync via Recent.
type Broadcaster interface {
	PublishMessage(ctx context.Context, message *domain.Message) error
}

// MessageService owns the append-only message log: validated,
// transactional sends and bounded recent-history reads.
type MessageService struct {
	messageRepo domain.MessageRepository
	roomRepo    domain.RoomRepository
	members     domain.MemberDirectory
	broadcaster Broadcaster

	// rejectClosedSends gates sending into CLOSED rooms. The platform
	// historically allowed it, so the default is permissive.
	rejectClosedSends bool
}

func NewMessageService(messageRepo domain.MessageRepository, roomRepo domain.RoomRepository,
	members domain.MemberDirectory, broadcaster Broadcaster, rejectClosedSends bool) *MessageService {
	return &MessageService{
		messageRepo:       messageRepo,
		roomRepo:          roomRepo,
		members:           members,
		broadcaster:       broadcaster,
		rejectClosedSends: rejectClosedSends,
	}
}

// Send validates, persists and broadcasts one message. The append and
// the room-metadata update (lastMessageAt, preview, sender read marker)
// commit in a single transaction inside the repository.
func (s *MessageService) Send(ctx context.Context, senderID, roomID int64, content string) (*domain.Message, error) {
	if senderID == 0 {
		return nil, domain.ErrUnauthenticated
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, domain.ErrInvalidInput
	}

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(senderID) {
		return nil, domain.ErrNotParticipant
	}
	if s.rejectClosedSends && room.Status == domain.RoomClosed {
		return nil, domain.ErrRoomClosed
	}

	sender, err := s.members.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: sender.Name,
		Content:    trimmed,
	}

	if err := s.messageRepo.Append(ctx, message); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.PublishMessage(ctx, message); err != nil {
			// The message is durable; live delivery is best-effort and
			// subscribers recover via Recent on reconnect.
			slog.Error("failed to publish message",
				slog.Int64("room_id", roomID),
				slog.Int64("message_id", message.ID),
				slog.String("error", err.Error()))
		}
	}

	return message, nil
}

// Recent returns up to limit of the room's newest messages in ascending
// chronological order and marks the reader's read marker.
func (s *MessageService) Recent(ctx context.Context, requesterID, roomID int64, limit int) ([]*domain.Message, error) {
	if requesterID == 0 {
		return nil, domain.ErrUnauthenticated
	}
	if limit <= 0 || limit > defaultRecentLimit {
		limit = defaultRecentLimit
	}

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(requesterID) {
		return nil, domain.ErrNotParticipant
	}

	messages, err := s.messageRepo.RecentByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}

	if err := s.roomRepo.MarkRead(ctx, roomID, requesterID, time.Now()); err != nil {
		slog.Warn("failed to update read marker",
			slog.Int64("room_id", roomID),
			slog.Int64("member_id", requesterID),
			slog.String("error", err.Error()))
	}

	return messages, nil
}
