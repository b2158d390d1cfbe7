// Package session keeps the signed-in farmer's identity in the store.
//
// Token verification belongs to the identity provider. The client only reads
// the claims it needs: who the farmer is and when the token expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/harvestsmart/harvestsmart/pkg/store"
)

const (
	TokenKey    = "session_token"
	FarmerIDKey = "farmerId"
)

var (
	ErrInvalidToken = errors.New("invalid identity token")
	ErrTokenExpired = errors.New("identity token expired")
)

// Session implements report.Identity on top of a store.
type Session struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Session {
	return &Session{store: s, now: time.Now}
}

// Claims are the identity token fields the client uses.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

// FarmerID prefers the provider's user_id claim and falls back to sub.
func (c *Claims) FarmerID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// ParseToken reads the claims of an identity token without verifying its signature.
func (s *Session) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.FarmerID() == "" {
		return nil, fmt.Errorf("%w: no user_id or sub claim", ErrInvalidToken)
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil && !exp.After(s.now()) {
		return nil, fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return claims, nil
}

// Login stores token and the farmer it identifies.
func (s *Session) Login(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, TokenKey, token); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, FarmerIDKey, claims.FarmerID()); err != nil {
		return nil, err
	}
	return claims, nil
}

// FarmerID returns the stored farmer or "" when nobody is logged in.
func (s *Session) FarmerID(ctx context.Context) (string, error) {
	id, _, err := s.store.Get(ctx, FarmerIDKey)
	return id, err
}

// Current returns the stored token's claims, or nil when logged out.
func (s *Session) Current(ctx context.Context) (*Claims, error) {
	token, ok, err := s.store.Get(ctx, TokenKey)
	if err != nil || !ok {
		return nil, err
	}
	return s.ParseToken(token)
}

// Logout wipes the whole store, reports included.
func (s *Session) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}
