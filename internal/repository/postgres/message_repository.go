package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"eum-chat/internal/domain"
)

// MessageRepository implements domain.MessageRepository for PostgreSQL.
type MessageRepository struct {
	db *sql.DB
	tm *TxManager
}

// NewMessageRepository creates a new PostgreSQL message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db, tm: NewTxManager(db)}
}

// Append inserts the message and updates the room's last-message
// metadata plus the sender's read marker in one transaction, so the read
// marker can never reference a message that failed to persist.
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) error {
	return r.tm.WithTx(ctx, func(tx *sql.Tx) error {
		insert := `
			INSERT INTO chat_messages (room_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`
		err := tx.QueryRowContext(ctx, insert,
			message.RoomID,
			message.SenderID,
			message.Content,
		).Scan(&message.ID, &message.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		touch := `
			UPDATE chat_rooms
			SET last_message_at = $2,
			    last_message_preview = $3,
			    farmer_last_read_at = CASE WHEN farmer_id = $4 THEN $2 ELSE farmer_last_read_at END,
			    user_last_read_at   = CASE WHEN farmer_id <> $4 AND user_id = $4 THEN $2 ELSE user_last_read_at END,
			    updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, touch,
			message.RoomID,
			message.CreatedAt,
			message.Content,
			message.SenderID,
		); err != nil {
			return fmt.Errorf("failed to update room metadata: %w", err)
		}

		return nil
	})
}

// RecentByRoom retrieves the newest limit messages for a room. The scan
// walks the (room_id, id) index descending and the slice is reversed in
// memory, which keeps the query bounded no matter how long the room
// history grows.
func (r *MessageRepository) RecentByRoom(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, mb.name, m.content, m.created_at
		FROM chat_messages m
		JOIN members mb ON m.sender_id = mb.id
		WHERE m.room_id = $1
		ORDER BY m.id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0, limit)
	for rows.Next() {
		msg := &domain.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// Reverse the slice to get oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
