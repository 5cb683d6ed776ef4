// Package auth provides JWT issuance/validation, password hashing, and the
// Google OAuth flow.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. The client registers or logs in (email+password), or completes the
//    Google OAuth dance via /api/auth/google.
// 2. Either way the server issues a JWT access token; the client stores it
//    and sends it back as "Authorization: Bearer <token>".
// 3. On protected routes, middleware validates the token and puts the user
//    id in the request context.
//
// WHY JWT?
// The token is stateless; the server keeps no session table. Everything
// needed (user id, expiry) is inside the signed token, and the HMAC
// signature means nobody can mint or alter one without the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is how long an access token stays valid. Clients hold the token
// themselves (no refresh flow), so it is deliberately long-lived.
const tokenTTL = 30 * 24 * time.Hour

const issuer = "enfiestados"

// TokenService signs and verifies JWT access tokens with an HMAC secret.
// The same secret is used for both operations; rotate it and every
// outstanding token is invalidated at once.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production,
// e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. The user id rides in the registered "sub"
// (Subject) claim, the standard field for "who this token belongs to".
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new 30-day access token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, tokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user id from
// its "sub" claim.
//
// Restricting the accepted algorithms to HS256 closes the classic
// algorithm-confusion hole where a token signed with "none" (or an RSA
// public key used as an HMAC secret) would otherwise slip through.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
