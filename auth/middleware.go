package auth

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"context"
	"net/http"
)

type contextKey string

const userKey contextKey = "user"

// Middleware resolves the Authorization header of every request and injects
// the user into the request context. Unresolved requests stop with a 401.
func Middleware(resolver contract.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				http.Error(w, "authorization token is missing or invalid", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}
