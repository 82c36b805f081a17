package auth

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/mocks"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTokenResolver_Resolve(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewTokenManager("a_long_enough_secret_for_tests", time.Hour)
	alice := domain.User{ID: "1", Name: "Alice", Handle: "alice"}

	t.Run("known user is read from the store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		users := mocks.NewMockIUserRepository(ctrl)
		users.EXPECT().Find(gomock.Any(), "1").Return(alice, nil).Times(1)

		token, err := manager.Issue(alice)
		req.NoError(err)

		user, err := NewTokenResolver(manager, users, log).Resolve(context.Background(), "Bearer "+token)
		req.NoError(err)
		req.Equal(alice, user)
	})

	t.Run("unknown user is recorded from claims", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		users := mocks.NewMockIUserRepository(ctrl)
		users.EXPECT().Find(gomock.Any(), "1").Return(domain.User{}, errors.ErrNotFound).Times(1)
		users.EXPECT().Save(gomock.Any(), alice).Return(nil).Times(1)

		token, err := manager.Issue(alice)
		req.NoError(err)

		user, err := NewTokenResolver(manager, users, log).Resolve(context.Background(), token)
		req.NoError(err)
		req.Equal(alice, user)
	})

	t.Run("invalid credential is unauthenticated", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		users := mocks.NewMockIUserRepository(ctrl)

		resolver := NewTokenResolver(manager, users, log)
		_, err := resolver.Resolve(context.Background(), "garbage")
		req.ErrorIs(err, errors.ErrUnauthenticated)

		_, err = resolver.Resolve(context.Background(), "")
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})
}

func TestMiddleware(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	resolver := mocks.NewMockIdentityResolver(ctrl)
	alice := domain.User{ID: "1", Name: "Alice"}

	resolver.EXPECT().Resolve(gomock.Any(), "Bearer good").Return(alice, nil).Times(1)
	resolver.EXPECT().Resolve(gomock.Any(), "").Return(domain.User{}, errors.ErrUnauthenticated).Times(1)

	handler := Middleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		req.True(ok)
		req.Equal(alice, user)
		w.WriteHeader(http.StatusNoContent)
	}))

	// Given a valid token
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/rooms/general", nil)
	request.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(recorder, request)
	req.Equal(http.StatusNoContent, recorder.Code)

	// Given no token
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/rooms/general", nil))
	req.Equal(http.StatusUnauthorized, recorder.Code)
}
