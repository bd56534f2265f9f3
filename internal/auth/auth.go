// Package auth provides password login and JWT session tokens for the
// admin surface.
//
// Sessions are HS256 JWTs carried in a cookie. The admin password is
// hashed once at startup; each login verifies against that hash so
// response timing does not depend on the submitted password.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned for a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken is returned for a missing, malformed or expired session.
	ErrInvalidToken = errors.New("auth: invalid token")
)

const issuer = "gemrack"

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
}

// SessionManager issues and validates admin sessions.
type SessionManager struct {
	passwordHash string
	secret       []byte
	ttl          time.Duration
}

// NewSessionManager builds a manager for one shared admin password.
// Returns nil when no password is configured, which disables the admin
// surface entirely.
func NewSessionManager(adminPassword, sessionSecret string, ttl time.Duration) (*SessionManager, error) {
	if adminPassword == "" {
		return nil, nil
	}
	if sessionSecret == "" {
		return nil, fmt.Errorf("auth: session secret required when admin password is set")
	}
	hash, err := HashPassword(adminPassword)
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		passwordHash: hash,
		secret:       []byte(sessionSecret),
		ttl:          ttl,
	}, nil
}

// Login checks the password and issues a session token.
func (m *SessionManager) Login(password string) (string, time.Time, error) {
	ok, err := VerifyPassword(password, m.passwordHash)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	exp := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and validates a session token.
func (m *SessionManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithAudience(issuer),
		jwt.WithIssuer(issuer),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
