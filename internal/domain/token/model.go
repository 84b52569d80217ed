package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TypeBearer is the only token type the backend issues.
const TypeBearer = "bearer"

// ErrNoExpiry is returned by ExpiresAt for tokens without an exp claim.
var ErrNoExpiry = errors.New("token has no exp claim")

// Token is the access token returned by POST /token.
type Token struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

// Empty is the token value for "not logged in".
func Empty() Token {
	return Token{Token: "", Type: TypeBearer}
}

// IsEmpty reports whether t carries no token.
func (t Token) IsEmpty() bool {
	return strings.TrimSpace(t.Token) == ""
}

// AuthorizationHeader returns the Authorization header value for t.
func (t Token) AuthorizationHeader() string {
	typ := t.Type
	if typ == "" || strings.EqualFold(typ, TypeBearer) {
		typ = "Bearer"
	}
	return typ + " " + t.Token
}

// ExpiresAt returns the exp claim of a JWT without verifying its signature;
// the signing key belongs to the backend.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.Parser{SkipClaimsValidation: true}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, ok := claims["exp"]
	if !ok {
		return time.Time{}, ErrNoExpiry
	}
	switch v := exp.(type) {
	case float64:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	default:
		return time.Time{}, errors.New("invalid exp claim")
	}
}

// Current re-validates t at now: an expired or unreadable token yields
// Empty(). It never fails; expiry is discovered on read.
// INVARIANT: the returned token is either Empty() or not expired at now
func Current(t Token, now time.Time) Token {
	if t.IsEmpty() {
		return Empty()
	}
	exp, err := ExpiresAt(t.Token)
	if errors.Is(err, ErrNoExpiry) {
		return t
	}
	if err != nil || !now.Before(exp) {
		return Empty()
	}
	if t.Type == "" {
		t.Type = TypeBearer
	}
	return t
}
