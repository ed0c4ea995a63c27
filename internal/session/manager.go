// Package session issues and validates the signed tokens that gate privileged
// coordinator operations.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every token failure: missing, malformed, bad
	// signature or expired. Callers get one error so replies never leak which
	// part of the credential was wrong.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrEmptySecret is returned when a manager is built without a signing key.
	ErrEmptySecret = errors.New("auth secret cannot be empty")
	// ErrInvalidTTL is returned when the session lifetime is not positive.
	ErrInvalidTTL = errors.New("session TTL must be positive")
)

// Claims is the self-contained session claim set: the bound user identity
// plus the registered expiry.
type Claims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// Manager issues and verifies stateless session tokens (HS256 signed claims).
// Tokens expire on their own after the configured TTL; there is no server-side
// session table and no explicit logout.
type Manager struct {
	secret      []byte
	ttl         time.Duration
	botPrefixes []string
}

// NewManager creates a session manager. botPrefixes enumerates the naming
// conventions of automation accounts that bypass token validation; an empty
// list disables the bypass entirely, which is the default deployment.
func NewManager(secret string, ttl time.Duration, botPrefixes []string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	prefixes := make([]string, 0, len(botPrefixes))
	for _, p := range botPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &Manager{secret: []byte(secret), ttl: ttl, botPrefixes: prefixes}, nil
}

// Issue creates a token bound to the given user, valid for the session TTL.
func (m *Manager) Issue(user string) (string, error) {
	if user == "" {
		return "", errors.New("user cannot be empty")
	}
	now := time.Now()
	claims := Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token and returns the user identity it is bound to.
func (m *Manager) Validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.User == "" {
		return "", ErrInvalidToken
	}
	return claims.User, nil
}

// IsBot reports whether the name matches a configured automation-account
// prefix. Always false when no prefixes are configured.
func (m *Manager) IsBot(name string) bool {
	if name == "" {
		return false
	}
	for _, p := range m.botPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Authorize resolves the caller identity for a protected operation. Bot-class
// declared identities are trusted outright when the bypass is configured;
// everyone else must present a valid token, and the identity bound to the
// token always wins over the client-declared one.
func (m *Manager) Authorize(token, declaredUser string) (string, error) {
	if m.IsBot(declaredUser) {
		return declaredUser, nil
	}
	return m.Validate(token)
}
