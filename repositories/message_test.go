package repositories

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(id, roomID string, at time.Time) domain.Message {
	return domain.Message{
		ID:          id,
		Content:     "this message will self destruct in 5 seconds",
		SenderID:    "1",
		SenderName:  "Alice",
		Kind:        domain.KindText,
		RoomID:      lo.ToPtr(roomID),
		Mentions:    []string{"2"},
		Attachments: []domain.Attachment{{URL: "files/1", Name: "plan.pdf", MimeType: "application/pdf"}},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func Test_Save_And_Find_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default())
	at := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	message := newMessage("m1", "general", at)

	req.NoError(repository.Save(ctx, message))

	found, err := repository.Find(ctx, "m1")
	req.NoError(err)
	req.Equal(message, found)

	_, err = repository.Find(ctx, "unknown")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_ListByRoom_Newest_First_With_Paging(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		req.NoError(repository.Save(ctx, newMessage(fmt.Sprintf("m%d", i), "general", at.Add(time.Duration(i)*time.Minute))))
	}
	// Another room must not leak into the page
	req.NoError(repository.Save(ctx, newMessage("other", "random", at)))

	page, err := repository.ListByRoom(ctx, "general", 0, 2)
	req.NoError(err)
	req.Equal([]string{"m4", "m3"}, ids(page))

	page, err = repository.ListByRoom(ctx, "general", 4, 2)
	req.NoError(err)
	req.Equal([]string{"m0"}, ids(page))
}

func Test_ListByRoom_Excludes_Deleted(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := newMessage("m1", "general", at)
	second := newMessage("m2", "general", at.Add(time.Second))
	req.NoError(repository.Save(ctx, first))
	req.NoError(repository.Save(ctx, second))

	// When the newest message is soft-deleted
	second.DeletedAt = lo.ToPtr(at.Add(time.Minute))
	req.NoError(repository.Update(ctx, second))

	// Then the timeline no longer shows it
	page, err := repository.ListByRoom(ctx, "general", 0, 10)
	req.NoError(err)
	req.Equal([]string{"m1"}, ids(page))

	// But the record is still there
	found, err := repository.Find(ctx, "m2")
	req.NoError(err)
	req.True(found.IsDeleted())
}

func Test_Update_Unknown_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default())

	err := repository.Update(context.Background(), newMessage("ghost", "general", time.Now().UTC()))
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Query_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	projectMessage := newMessage("p1", "", at)
	projectMessage.RoomID = nil
	projectMessage.ProjectID = lo.ToPtr("apollo")
	req.NoError(repository.Save(ctx, projectMessage))
	req.NoError(repository.Save(ctx, newMessage("m1", "general", at)))

	found, err := repository.Query(ctx, func(m domain.Message) bool {
		return m.ProjectID != nil && *m.ProjectID == "apollo"
	})
	req.NoError(err)
	req.Equal([]string{"p1"}, ids(found))
}

func ids(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.ID })
}
