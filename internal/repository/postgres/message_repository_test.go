package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"eum-chat/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_Append(t *testing.T) {
	t.Run("inserts_and_touches_room_in_one_transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		createdAt := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_messages")).
			WithArgs(int64(7), int64(2), "hello").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(100), createdAt))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_rooms")).
			WithArgs(int64(7), createdAt, "hello", int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewMessageRepository(db)
		msg := &domain.Message{RoomID: 7, SenderID: 2, Content: "hello"}

		err = repo.Append(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, int64(100), msg.ID)
		assert.Equal(t, createdAt, msg.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert_failure_rolls_back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_messages")).
			WillReturnError(errors.New("insert failed"))
		mock.ExpectRollback()

		repo := NewMessageRepository(db)
		err = repo.Append(context.Background(), &domain.Message{RoomID: 7, SenderID: 2, Content: "hello"})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("metadata_failure_rolls_back_the_insert_too", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		createdAt := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_messages")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(100), createdAt))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_rooms")).
			WillReturnError(errors.New("update failed"))
		mock.ExpectRollback()

		repo := NewMessageRepository(db)
		err = repo.Append(context.Background(), &domain.Message{RoomID: 7, SenderID: 2, Content: "hello"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update room metadata")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMessageRepository_RecentByRoom(t *testing.T) {
	t.Run("reverses_descending_scan_to_ascending", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		// Newest first, as the index scan delivers them.
		rows := sqlmock.NewRows([]string{"id", "room_id", "sender_id", "name", "content", "created_at"}).
			AddRow(int64(3), int64(7), int64(2), "buyer", "third", now).
			AddRow(int64(2), int64(7), int64(1), "farmer", "second", now.Add(-time.Minute)).
			AddRow(int64(1), int64(7), int64(2), "buyer", "first", now.Add(-2*time.Minute))

		mock.ExpectQuery("SELECT (.+) FROM chat_messages m").
			WithArgs(int64(7), 50).
			WillReturnRows(rows)

		repo := NewMessageRepository(db)
		messages, err := repo.RecentByRoom(context.Background(), 7, 50)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "third", messages[2].Content)
		assert.Equal(t, "farmer", messages[1].SenderName)
	})

	t.Run("empty_room", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM chat_messages m").
			WithArgs(int64(7), 50).
			WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "sender_id", "name", "content", "created_at"}))

		repo := NewMessageRepository(db)
		messages, err := repo.RecentByRoom(context.Background(), 7, 50)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("query_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM chat_messages m").
			WillReturnError(errors.New("query failed"))

		repo := NewMessageRepository(db)
		_, err = repo.RecentByRoom(context.Background(), 7, 50)
		assert.Error(t, err)
	})
}
