package index

import (
	"chat-hub/domain"
	"chat-hub/domain/search"
	"chat-hub/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blugelabs/bluge"
)

const (
	fieldContent  = "content"
	fieldRoom     = "room"
	fieldSender   = "sender"
	fieldLanguage = "language"
	fieldID       = "_id"
)

// MessageIndex is the full-text index of live room messages.
// Only the id is stored, the message itself is read back from the store.
type MessageIndex struct {
	mu     sync.RWMutex
	writer *bluge.Writer
	log    *slog.Logger
	closed bool
}

func NewMessageIndex(config bluge.Config, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

// Index adds or replaces a message. Messages outside of a room and deleted
// messages are not searchable.
func (i *MessageIndex) Index(message domain.Message) error {
	if message.RoomID == nil || message.IsDeleted() {
		return i.Remove(message.ID)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return errors.ErrIndexClosed
	}

	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField(fieldContent, message.Content)).
		AddField(bluge.NewKeywordField(fieldRoom, *message.RoomID)).
		AddField(bluge.NewKeywordField(fieldSender, message.SenderID)).
		AddField(bluge.NewKeywordField(fieldLanguage, message.Language).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Remove(messageID string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return errors.ErrIndexClosed
	}
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search returns the ids of the best matching messages of a room.
func (i *MessageIndex) Search(ctx context.Context, roomID string, query search.Query) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, errors.ErrIndexClosed
	}
	if query.Empty() {
		return nil, nil
	}

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(roomID).SetField(fieldRoom))
	if query.Terms != "" {
		q.AddMust(bluge.NewMatchQuery(query.Terms).SetField(fieldContent))
	}
	if query.Language != "" {
		q.AddMust(bluge.NewTermQuery(query.Language).SetField(fieldLanguage))
	}
	if query.SenderID != "" {
		q.AddMust(bluge.NewTermQuery(query.SenderID).SetField(fieldSender))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := dmi.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == fieldID {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, err
	}
	i.log.Debug("Search done", "room_id", roomID, "terms", query.Terms, "hits", len(ids))
	return ids, nil
}

// Close can be called more than once.
func (i *MessageIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.writer.Close()
}
