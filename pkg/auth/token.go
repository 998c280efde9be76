package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xtoazt/gummybear-sub000/pkg/directory"
)

// Claims are the JWT claims issued to GummyBear sessions.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenManager signs and validates session tokens with an HMAC app secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewTokenManager creates a manager. An empty secret is refused: tokens
// signed with a guessable key are worse than no auth at all.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("JWT secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: time.Now}, nil
}

// WithClock overrides the clock for testing.
func (tm *TokenManager) WithClock(clock func() time.Time) *TokenManager {
	tm.clock = clock
	return tm
}

// Issue creates a signed token for a user.
func (tm *TokenManager) Issue(user *directory.User) (string, error) {
	now := tm.clock().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			Issuer:    "gummybear",
		},
		Username: user.Username,
		Role:     string(user.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Validate parses and verifies a token string, returning its claims.
func (tm *TokenManager) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return tm.clock() }))
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
