package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"eum-chat/internal/domain"
)

// roomColumns selects a room row joined with the farm and member names
// the room views need.
const roomColumns = `
	SELECT r.id, r.farm_id, f.name, r.farmer_id, fm.name, r.user_id, um.name,
	       r.status, r.last_message_at, r.last_message_preview,
	       r.farmer_last_read_at, r.user_last_read_at, r.created_at, r.updated_at
	FROM chat_rooms r
	JOIN farms f ON r.farm_id = f.id
	JOIN members fm ON r.farmer_id = fm.id
	JOIN members um ON r.user_id = um.id
`

// RoomRepository implements domain.RoomRepository for PostgreSQL.
type RoomRepository struct {
	db *sql.DB
}

// NewRoomRepository creates a new PostgreSQL room repository.
func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts a new room. A losing racer on the triple constraint
// gets domain.ErrRoomExists and is expected to re-fetch by triple.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO chat_rooms (farm_id, farmer_id, user_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		room.FarmID,
		room.FarmerID,
		room.UserID,
		room.Status,
	).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		if IsUniqueViolation(err, UniqueRoomTriple) {
			return domain.ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetByID retrieves a room by its id.
func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, roomColumns+` WHERE r.id = $1`, id))
}

// GetByTriple retrieves the room for a (farm, farmer, user) combination.
func (r *RoomRepository) GetByTriple(ctx context.Context, farmID, farmerID, userID int64) (*domain.Room, error) {
	row := r.db.QueryRowContext(ctx,
		roomColumns+` WHERE r.farm_id = $1 AND r.farmer_id = $2 AND r.user_id = $3`,
		farmID, farmerID, userID)
	return r.scanOne(row)
}

// ListByMember retrieves all rooms where the member participates as
// farmer or user, most recently updated first.
func (r *RoomRepository) ListByMember(ctx context.Context, memberID int64) ([]*domain.Room, error) {
	query := roomColumns + `
		WHERE r.farmer_id = $1 OR r.user_id = $1
		ORDER BY r.updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*domain.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// MarkRead stores readAt in the caller's read-marker column. The CASE
// arms make a non-participant id a no-op without a prior read.
func (r *RoomRepository) MarkRead(ctx context.Context, roomID, memberID int64, readAt time.Time) error {
	query := `
		UPDATE chat_rooms
		SET farmer_last_read_at = CASE WHEN farmer_id = $2 THEN $3 ELSE farmer_last_read_at END,
		    user_last_read_at   = CASE WHEN farmer_id <> $2 AND user_id = $2 THEN $3 ELSE user_last_read_at END
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, roomID, memberID, readAt)
	if err != nil {
		return fmt.Errorf("failed to mark room read: %w", err)
	}
	return nil
}

// UpdateStatus sets the room status.
func (r *RoomRepository) UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	query := `
		UPDATE chat_rooms
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, roomID, status)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RoomRepository) scanOne(row rowScanner) (*domain.Room, error) {
	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return room, nil
}

func scanRoom(row rowScanner) (*domain.Room, error) {
	room := &domain.Room{}
	err := row.Scan(
		&room.ID,
		&room.FarmID,
		&room.FarmName,
		&room.FarmerID,
		&room.FarmerName,
		&room.UserID,
		&room.UserName,
		&room.Status,
		&room.LastMessageAt,
		&room.LastMessagePreview,
		&room.FarmerLastReadAt,
		&room.UserLastReadAt,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}
