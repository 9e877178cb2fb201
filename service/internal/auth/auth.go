// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("missing bearer token")

// Claims identify a simulator process allowed to stream frames.
type Claims struct {
	jwt.RegisteredClaims
	// Worker is a free-form name for the rollout worker, used in logs.
	Worker string `json:"worker"`
}

// Signer issues and verifies HS256 feed tokens.
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewSigner returns a Signer for the shared secret.
func NewSigner(secret, issuer string) *Signer {
	return &Signer{key: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue returns a signed token for worker valid for ttl.
func (s *Signer) Issue(worker string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   worker,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Worker: worker,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify parses and validates a token.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

// FromRequest extracts the token from the Authorization header, falling back
// to the "token" query parameter for clients that cannot set headers on upgrade.
func FromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || tok == "" {
			return "", ErrNoToken
		}
		return tok, nil
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", ErrNoToken
}
