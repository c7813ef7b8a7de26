package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie the login stub sets.
const CookieName = "auth-token"

// JWT wraps a signing secret for issuing/verifying tokens. Nothing about the
// user is stored: a valid token is the whole session.
type JWT struct{ secret []byte }

// New creates a new JWT signer/verifier.
func New(secret string) *JWT { return &JWT{secret: []byte(secret)} }

// Sign creates a token for uid with the given TTL
func (j *JWT) Sign(uid string, ttl time.Duration) (string, error) {
	if uid == "" {
		return "", errors.New("empty uid")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(j.secret)
}

// Verify checks a token and returns the sub (user ID) claim
func (j *JWT) Verify(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("no sub")
	}
	return claims.Subject, nil
}
