package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"eum-chat/internal/domain"
	"eum-chat/internal/testutil"
)

type messageFixture struct {
	svc         *MessageService
	messageRepo *testutil.MockMessageRepository
	roomRepo    *testutil.MockRoomRepository
	members     *testutil.MockMemberDirectory
	broadcaster *testutil.MockBroadcaster
}

func newMessageFixture(rejectClosedSends bool) *messageFixture {
	f := &messageFixture{
		messageRepo: testutil.NewMockMessageRepository(),
		roomRepo:    testutil.NewMockRoomRepository(),
		members:     testutil.NewMockMemberDirectory(),
		broadcaster: testutil.NewMockBroadcaster(),
	}
	f.svc = NewMessageService(f.messageRepo, f.roomRepo, f.members, f.broadcaster, rejectClosedSends)

	f.roomRepo.Rooms[5] = testutil.NewTestRoom(testutil.WithRoomID(5), testutil.WithTriple(10, 1, 2))
	f.members.Members[1] = testutil.NewTestMember(testutil.WithMemberID(1), testutil.WithMemberName("farmer"))
	f.members.Members[2] = testutil.NewTestMember(testutil.WithMemberID(2), testutil.WithMemberName("buyer"))
	return f
}

func TestSend_PersistsAndBroadcasts(t *testing.T) {
	f := newMessageFixture(false)

	msg, err := f.svc.Send(context.Background(), 2, 5, "hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.ID == 0 {
		t.Error("expected message to get an id")
	}
	if msg.SenderName != "buyer" {
		t.Errorf("expected sender name resolved from directory, got %q", msg.SenderName)
	}
	if f.broadcaster.PublishedCount() != 1 {
		t.Errorf("expected 1 published message, got %d", f.broadcaster.PublishedCount())
	}
}

func TestSend_TrimsContent(t *testing.T) {
	f := newMessageFixture(false)

	msg, err := f.svc.Send(context.Background(), 1, 5, "  padded  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "padded" {
		t.Errorf("expected trimmed content, got %q", msg.Content)
	}
}

func TestSend_RejectsBlankContent(t *testing.T) {
	f := newMessageFixture(false)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.Send(context.Background(), 1, 5, content)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("content %q: expected ErrInvalidInput, got %v", content, err)
		}
	}
	if f.broadcaster.PublishedCount() != 0 {
		t.Errorf("expected no broadcasts for rejected sends, got %d", f.broadcaster.PublishedCount())
	}
}

func TestSend_Unauthenticated(t *testing.T) {
	f := newMessageFixture(false)

	_, err := f.svc.Send(context.Background(), 0, 5, "hi")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSend_OutsiderRejected(t *testing.T) {
	f := newMessageFixture(false)

	_, err := f.svc.Send(context.Background(), 99, 5, "hi")
	if !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
}

func TestSend_RoomNotFound(t *testing.T) {
	f := newMessageFixture(false)

	_, err := f.svc.Send(context.Background(), 1, 404, "hi")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestSend_ClosedRoomPolicy(t *testing.T) {
	t.Run("permissive_default_allows_send", func(t *testing.T) {
		f := newMessageFixture(false)
		f.roomRepo.Rooms[5].Status = domain.RoomClosed

		msg, err := f.svc.Send(context.Background(), 1, 5, "still talking")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg == nil {
			t.Fatal("expected message")
		}
	})

	t.Run("strict_mode_rejects_send", func(t *testing.T) {
		f := newMessageFixture(true)
		f.roomRepo.Rooms[5].Status = domain.RoomClosed

		_, err := f.svc.Send(context.Background(), 1, 5, "too late")
		if !errors.Is(err, domain.ErrRoomClosed) {
			t.Errorf("expected ErrRoomClosed, got %v", err)
		}
	})

	t.Run("strict_mode_allows_active_room", func(t *testing.T) {
		f := newMessageFixture(true)

		if _, err := f.svc.Send(context.Background(), 1, 5, "fine"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSend_AppendFailureSkipsBroadcast(t *testing.T) {
	f := newMessageFixture(false)
	f.messageRepo.AppendFunc = func(ctx context.Context, message *domain.Message) error {
		return errors.New("db down")
	}

	_, err := f.svc.Send(context.Background(), 1, 5, "hi")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if f.broadcaster.PublishedCount() != 0 {
		t.Errorf("expected no broadcast after failed append, got %d", f.broadcaster.PublishedCount())
	}
}

func TestSend_BroadcastFailureStillReturnsMessage(t *testing.T) {
	f := newMessageFixture(false)
	f.broadcaster.PublishMessageFunc = func(ctx context.Context, message *domain.Message) error {
		return errors.New("broker down")
	}

	msg, err := f.svc.Send(context.Background(), 1, 5, "hi")
	if err != nil {
		t.Fatalf("expected send to survive a broadcast failure, got %v", err)
	}
	if msg.ID == 0 {
		t.Error("expected persisted message")
	}
}

func TestRecent_ReturnsAscendingTail(t *testing.T) {
	f := newMessageFixture(false)

	for i := 0; i < 60; i++ {
		if _, err := f.svc.Send(context.Background(), 1, 5, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	messages, err := f.svc.Recent(context.Background(), 2, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(messages) != defaultRecentLimit {
		t.Fatalf("expected %d messages, got %d", defaultRecentLimit, len(messages))
	}
	if messages[0].Content != "msg 10" {
		t.Errorf("expected tail to start at msg 10, got %q", messages[0].Content)
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].ID <= messages[i-1].ID {
			t.Fatalf("expected ascending order, got %d after %d", messages[i].ID, messages[i-1].ID)
		}
	}
}

func TestRecent_ClampsLimit(t *testing.T) {
	f := newMessageFixture(false)

	limits := map[string]int{
		"zero":      0,
		"negative":  -3,
		"too_large": 500,
	}
	for name, limit := range limits {
		t.Run(name, func(t *testing.T) {
			got := 0
			f.messageRepo.RecentByRoomFunc = func(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error) {
				got = limit
				return nil, nil
			}
			if _, err := f.svc.Recent(context.Background(), 1, 5, limit); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != defaultRecentLimit {
				t.Errorf("expected clamped limit %d, got %d", defaultRecentLimit, got)
			}
		})
	}
}

func TestRecent_MarksReaderRead(t *testing.T) {
	f := newMessageFixture(false)

	if _, err := f.svc.Send(context.Background(), 1, 5, "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.Recent(context.Background(), 2, 5, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.roomRepo.Rooms[5].UserLastReadAt == nil {
		t.Error("expected the reader's read marker to be set")
	}
	if f.roomRepo.Rooms[5].FarmerLastReadAt != nil {
		t.Error("expected only the reader's marker to change")
	}
}

func TestRecent_MarkReadFailureIsNonFatal(t *testing.T) {
	f := newMessageFixture(false)
	f.roomRepo.MarkReadFunc = func(ctx context.Context, roomID, memberID int64, readAt time.Time) error {
		return errors.New("marker update failed")
	}

	if _, err := f.svc.Recent(context.Background(), 1, 5, 10); err != nil {
		t.Errorf("expected read-marker failure to be swallowed, got %v", err)
	}
}

func TestRecent_OutsiderRejected(t *testing.T) {
	f := newMessageFixture(false)

	_, err := f.svc.Recent(context.Background(), 99, 5, 10)
	if !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
}
