package repositories

import (
	"chat-hub/domain"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const (
	roomPrefix        = "room:"
	memberIndexPrefix = "idx:member:"

	maxConflictRetries = 10
	conflictBackoff    = 2 * time.Millisecond
)

// RoomRepository stores rooms as "room:{id}" and keeps a participant index
// "idx:member:{user}:{room}" so the rooms of a user are a prefix scan away.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func memberKey(userID, roomID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", memberIndexPrefix, userID, roomID))
}

// Save upserts a room. The participant index follows the new participant set
// inside the same transaction.
func (r *RoomRepository) Save(_ context.Context, room domain.Room) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var previous domain.Room
		if err := getRecord(txn, roomPrefix+room.ID, &previous); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return writeRoom(txn, previous, room)
	})
	return storeError(err, "save room "+room.ID)
}

// Mutate reads the room, applies fn and writes the result back in a single
// transaction, so concurrent changes to one room never overwrite each other.
// fn reports whether it changed the room; nothing is written otherwise and an
// error from fn is returned as is. Conflicting transactions are retried.
func (r *RoomRepository) Mutate(ctx context.Context, id string, fn func(room *domain.Room) (bool, error)) (domain.Room, error) {
	var (
		room  domain.Room
		fnErr error
		err   error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return domain.Room{}, err
		}
		fnErr = nil
		err = r.db.Update(func(txn *badger.Txn) error {
			var previous domain.Room
			if err := getRecord(txn, roomPrefix+id, &previous); err != nil {
				return err
			}
			room = previous
			room.Participants = slices.Clone(previous.Participants)

			var changed bool
			changed, fnErr = fn(&room)
			if fnErr != nil || !changed {
				return fnErr
			}
			return writeRoom(txn, previous, room)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * conflictBackoff)
	}
	if fnErr != nil {
		return domain.Room{}, fnErr
	}
	if err != nil {
		return domain.Room{}, storeError(err, "update room "+id)
	}
	return room, nil
}

// writeRoom stores room and moves the participant index from previous.
func writeRoom(txn *badger.Txn, previous, room domain.Room) error {
	removed, _ := lo.Difference(previous.Participants, room.Participants)
	for _, userID := range removed {
		if err := txn.Delete(memberKey(userID, room.ID)); err != nil {
			return err
		}
	}
	for _, userID := range room.Participants {
		if err := txn.Set(memberKey(userID, room.ID), nil); err != nil {
			return err
		}
	}
	return setRecord(txn, roomPrefix+room.ID, room)
}

func (r *RoomRepository) Find(_ context.Context, id string) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, roomPrefix+id, &room)
	})
	if err != nil {
		return domain.Room{}, storeError(err, "room "+id)
	}
	return room, nil
}

// List returns every room, archived ones included.
func (r *RoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var room domain.Room
			err := it.Item().Value(func(val []byte) error {
				return decode(val, &room)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "list rooms")
	}
	return rooms, nil
}

// ListForUser returns the rooms where the user is a durable participant.
func (r *RoomRepository) ListForUser(ctx context.Context, userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("%s%s:", memberIndexPrefix, userID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var roomIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			roomIDs = append(roomIDs, string(it.Item().Key()[len(prefixStr):]))
		}
		for _, roomID := range roomIDs {
			var room domain.Room
			if err := getRecord(txn, roomPrefix+roomID, &room); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "rooms of user "+userID)
	}
	return rooms, nil
}
