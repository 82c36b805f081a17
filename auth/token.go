package auth

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-hub"

// CustomClaims defines the structure of the data stored inside the JWT.
// Name and handle let a first connection seed the local user projection.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Handle string `json:"handle,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration, now: time.Now}
}

// Issue creates a signed HS256 token for a user.
func (m *TokenManager) Issue(user domain.User) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		UserID: user.ID,
		Name:   user.Name,
		Handle: user.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate parses and validates the signature and expiration of a token.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
