package auth

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

// TokenResolver resolves a bearer token into a user of the local projection.
// Users seen for the first time are recorded from their claims.
type TokenResolver struct {
	tokens *TokenManager
	users  contract.IUserRepository
	log    *slog.Logger
}

func NewTokenResolver(tokens *TokenManager, users contract.IUserRepository, log *slog.Logger) *TokenResolver {
	return &TokenResolver{tokens: tokens, users: users, log: log}
}

func (r *TokenResolver) Resolve(ctx context.Context, credential string) (domain.User, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return domain.User{}, errors.ErrUnauthenticated
	}
	claims, err := r.tokens.Validate(credential)
	if err != nil {
		r.log.Debug("Token rejected", "error", err)
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	user, err := r.users.Find(ctx, claims.UserID)
	switch {
	case err == nil:
		return user, nil
	case stderrors.Is(err, errors.ErrNotFound):
		user = domain.User{ID: claims.UserID, Name: claims.Name, Handle: claims.Handle}
		if user.Name == "" {
			user.Name = claims.UserID
		}
		if err = r.users.Save(ctx, user); err != nil {
			return domain.User{}, err
		}
		r.log.Info("User recorded from token", "user_id", user.ID)
		return user, nil
	default:
		return domain.User{}, err
	}
}
