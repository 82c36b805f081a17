package repositories

import (
	"chat-hub/domain"
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	userPrefix        = "user:"
	handleIndexPrefix = "idx:handle:"
)

// UserRepository keeps the local projection of the identity store:
// display names and mention handles.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Save upserts the user and moves its handle index when the handle changed.
func (u *UserRepository) Save(_ context.Context, user domain.User) error {
	user.Handle = strings.ToLower(user.Handle)
	err := u.db.Update(func(txn *badger.Txn) error {
		var previous domain.User
		err := getRecord(txn, userPrefix+user.ID, &previous)
		switch {
		case err == nil && previous.Handle != "" && previous.Handle != user.Handle:
			if err = txn.Delete([]byte(handleIndexPrefix + previous.Handle)); err != nil {
				return err
			}
		case err != nil && err != badger.ErrKeyNotFound:
			return err
		}
		if err = setRecord(txn, userPrefix+user.ID, user); err != nil {
			return err
		}
		if user.Handle == "" {
			return nil
		}
		return txn.Set([]byte(handleIndexPrefix+user.Handle), []byte(user.ID))
	})
	return storeError(err, "save user")
}

func (u *UserRepository) Find(_ context.Context, id string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, userPrefix+id, &user)
	})
	if err != nil {
		return domain.User{}, storeError(err, "user "+id)
	}
	return user, nil
}

// FindByHandle is case-insensitive.
func (u *UserRepository) FindByHandle(_ context.Context, handle string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(handleIndexPrefix + strings.ToLower(handle)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getRecord(txn, userPrefix+string(id), &user)
	})
	if err != nil {
		return domain.User{}, storeError(err, "handle "+handle)
	}
	return user, nil
}
