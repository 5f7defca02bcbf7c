// Package session carries the signed-in caller explicitly through
// context.Context. Sign-in itself belongs to an external identity provider;
// this package only reads the session token it issues.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned by Require when the context carries no session.
var ErrNoSession = errors.New("session: sign-in required")

// Session identifies the signed-in caller.
type Session struct {
	Subject   string
	Username  string
	Token     string
	ExpiresAt time.Time
}

// User returns the display name of the caller, falling back to the subject.
func (s Session) User() string {
	if s.Username != "" {
		return s.Username
	}
	return s.Subject
}

// Anonymous returns a tokenless session for deployments with the sign-in gate
// disabled.
func Anonymous(user string) Session {
	return Session{Subject: user, Username: user}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Require returns the session stored in ctx or ErrNoSession.
func Require(ctx context.Context) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Claims is the subset of identity-provider token claims the client reads.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Parse reads a session token. When secret is non-empty the token must be an
// HMAC-SHA256 JWT signed with it; otherwise the claims are read without
// signature verification and only expiry is checked locally.
func Parse(token, secret string) (Session, error) {
	var claims Claims

	if secret != "" {
		_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return Session{}, fmt.Errorf("session: parse token: %w", err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return Session{}, fmt.Errorf("session: parse token: %w", err)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return Session{}, fmt.Errorf("session: parse token: %w", jwt.ErrTokenExpired)
		}
	}

	if claims.Subject == "" && claims.Username == "" {
		return Session{}, fmt.Errorf("session: token has no subject")
	}

	s := Session{
		Subject:  claims.Subject,
		Username: claims.Username,
		Token:    token,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Issue mints an HMAC-SHA256 session token for user that expires after ttl.
// It exists for development setups without an identity provider.
func Issue(user, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("session: secret is required to issue tokens")
	}
	if user == "" {
		return "", fmt.Errorf("session: user is required")
	}
	now := time.Now()
	claims := Claims{
		Username: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}
