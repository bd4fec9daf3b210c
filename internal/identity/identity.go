// Package identity abstracts the external identity/session provider. The
// chat core only needs the current user id and whether a session exists;
// authentication itself lives outside this module.
package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the caller's identity as reported by the provider.
type Session struct {
	UserID        string
	Authenticated bool
}

// Provider supplies the current session. Implementations must treat a
// missing session as (Session{}, nil), not an error.
type Provider interface {
	CurrentSession(ctx context.Context) (Session, error)
}

// Static is a fixed-session provider used by demos and tests.
type Static struct {
	UserID string
}

func (s Static) CurrentSession(ctx context.Context) (Session, error) {
	if s.UserID == "" {
		return Session{}, nil
	}
	return Session{UserID: s.UserID, Authenticated: true}, nil
}

// TokenProvider resolves sessions from a signed JWT carried by the caller.
type TokenProvider struct {
	Secret string
	Token  string
}

func (p TokenProvider) CurrentSession(ctx context.Context) (Session, error) {
	if p.Token == "" {
		return Session{}, nil
	}

	token, err := jwt.Parse(p.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte(p.Secret), nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("invalid session token claims")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Session{}, fmt.Errorf("session token missing user_id")
	}
	return Session{UserID: userID, Authenticated: true}, nil
}
