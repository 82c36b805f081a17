package repositories

import (
	"chat-hub/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix   = "msg:"
	roomIndexPrefix = "idx:room:"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// roomIndexKey is formatted as "idx:room:{room_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep two messages created at the same nanosecond apart.
func roomIndexKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s",
		roomIndexPrefix,
		*message.RoomID,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

// Save persists a new message and, when it belongs to a room, its position
// in the room timeline.
func (m *MessageRepository) Save(_ context.Context, message domain.Message) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		if err := setRecord(txn, messagePrefix+message.ID, message); err != nil {
			return err
		}
		if message.RoomID == nil {
			return nil
		}
		return txn.Set(roomIndexKey(message), []byte(message.ID))
	})
	return storeError(err, "save message "+message.ID)
}

// Update rewrites an existing message. A soft-deleted message leaves the
// room timeline but its record is kept.
func (m *MessageRepository) Update(_ context.Context, message domain.Message) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(messagePrefix + message.ID)); err != nil {
			return err
		}
		if err := setRecord(txn, messagePrefix+message.ID, message); err != nil {
			return err
		}
		if message.RoomID != nil && message.IsDeleted() {
			return txn.Delete(roomIndexKey(message))
		}
		return nil
	})
	return storeError(err, "update message "+message.ID)
}

func (m *MessageRepository) Find(_ context.Context, id string) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, messagePrefix+id, &message)
	})
	if err != nil {
		return domain.Message{}, storeError(err, "message "+id)
	}
	return message, nil
}

// ListByRoom walks the room timeline from the newest entry backwards.
// Deleted messages are skipped before offset and limit are applied.
func (m *MessageRepository) ListByRoom(ctx context.Context, roomID string, offset, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("%s%s:", roomIndexPrefix, roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Start past the newest possible key: idx:room:{id}:9999999999999999999
		seekKey := append(prefix, []byte("9999999999999999999")...)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(messages) == limit {
				break
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var message domain.Message
			if err = getRecord(txn, messagePrefix+string(id), &message); err != nil {
				return err
			}
			if message.IsDeleted() {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "messages of room "+roomID)
	}
	m.log.Debug("Room page loaded", "room_id", roomID, "offset", offset, "count", len(messages))
	return messages, nil
}

// Query scans every stored message, deleted ones included, and keeps those
// matching the predicate.
func (m *MessageRepository) Query(ctx context.Context, predicate func(domain.Message) bool) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return decode(val, &message)
			})
			if err != nil {
				return err
			}
			if predicate(message) {
				messages = append(messages, message)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "query messages")
	}
	return messages, nil
}
