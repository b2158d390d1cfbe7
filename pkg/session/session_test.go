package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func token(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-secret"))
	require.NoError(t, err)
	return s
}

func newSession() (*Session, *store.Memory) {
	m := store.NewMemory()
	s := New(m)
	s.now = func() time.Time { return now }
	return s, m
}

func TestLoginStoresFarmer(t *testing.T) {
	ctx := context.Background()
	s, m := newSession()

	tok := token(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		UserID:           "farmer-7",
		Email:            "a@estate.my",
	})
	claims, err := s.Login(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "farmer-7", claims.FarmerID())

	id, err := s.FarmerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "farmer-7", id)

	cur, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@estate.my", cur.Email)

	stored, ok, _ := m.Get(ctx, TokenKey)
	assert.True(t, ok)
	assert.Equal(t, tok, stored)
}

func TestLoginFallsBackToSubject(t *testing.T) {
	s, _ := newSession()
	claims, err := s.Login(context.Background(), token(t, jwt.RegisteredClaims{Subject: "sub-1"}))
	require.NoError(t, err)
	assert.Equal(t, "sub-1", claims.FarmerID())
}

func TestLoginRejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
		is    error
	}{
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"no subject", token(t, jwt.RegisteredClaims{Issuer: "x"}), ErrInvalidToken},
		{"expired", token(t, jwt.RegisteredClaims{Subject: "s", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}), ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newSession()
			_, err := s.Login(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.is)
			keys, _ := m.Keys(context.Background(), "")
			assert.Empty(t, keys)
		})
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	s, m := newSession()
	_, err := s.Login(ctx, token(t, jwt.RegisteredClaims{Subject: "sub-1"}))
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "report_2025-03-14", "{}"))

	require.NoError(t, s.Logout(ctx))
	keys, _ := m.Keys(ctx, "")
	assert.Empty(t, keys)

	id, err := s.FarmerID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
	cur, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}
