package repositories

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Save_And_Find_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))

	req.NoError(repository.Save(ctx, domain.User{ID: "1", Name: "Alice", Handle: "Alice"}))

	user, err := repository.Find(ctx, "1")
	req.NoError(err)
	req.Equal(domain.User{ID: "1", Name: "Alice", Handle: "alice"}, user)

	// Handles are case-insensitive
	user, err = repository.FindByHandle(ctx, "ALICE")
	req.NoError(err)
	req.Equal("1", user.ID)
}

func Test_Save_User_Moves_Handle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openDB(t))

	req.NoError(repository.Save(ctx, domain.User{ID: "1", Name: "Alice", Handle: "alice"}))
	req.NoError(repository.Save(ctx, domain.User{ID: "1", Name: "Alice", Handle: "ally"}))

	_, err := repository.FindByHandle(ctx, "alice")
	req.ErrorIs(err, errors.ErrNotFound)

	user, err := repository.FindByHandle(ctx, "ally")
	req.NoError(err)
	req.Equal("1", user.ID)
}
