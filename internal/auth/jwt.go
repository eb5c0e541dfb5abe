// Package auth provides token signing, password hashing, OAuth providers
// and the session middleware for the blog API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. A client signs up or logs in with a password (or via OAuth) and
//    receives a signed JWT access token carrying {id, username, isAdmin}.
// 2. A server-side refresh session is created alongside; its id travels
//    in an HttpOnly cookie, the refresh token itself stays on the server.
// 3. On each API call the session middleware reads the bearer header,
//    validates the JWT and loads the user fresh from the store.
// 4. When the access token expires the client calls /api/user/refresh;
//    the server rotates the refresh session and issues a new access token.
//
// The access token payload mirrors the user row at signing time. It can
// go stale: the middleware therefore re-checks username and isAdmin
// against the store on every request, so a token minted before a
// material account change stops working immediately.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/fancy-blog/internal/apperror"
)

const issuer = "fancy-blog"

// Token parse failures, classified for the session middleware. The
// distinction matters: an expired token proves there was a session,
// which the OAuth bind-or-create flow treats differently from no
// session at all.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Payload is the identity embedded in every token.
type Payload struct {
	UserID   uint
	Username string
	IsAdmin  bool
}

// claims is the JWT wire shape. The user id rides in the standard "sub"
// claim; username and isAdmin are private claims.
type claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenService signs and parses access and refresh tokens. The two kinds
// use different secrets and lifetimes so a leaked access secret does not
// compromise refresh tokens and vice versa.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a TokenService. Both secrets must be at least
// 16 characters; generate them with e.g. `openssl rand -hex 32`.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: JWT secrets must be at least 16 characters")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func checkPayload(p Payload) error {
	if p.UserID == 0 {
		return apperror.IllegalPayload("token payload must have a user id")
	}
	if p.Username == "" {
		return apperror.IllegalPayload("token payload must have a username")
	}
	return nil
}

func (s *TokenService) sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	if err := checkPayload(p); err != nil {
		return "", err
	}

	now := time.Now()
	c := claims{
		Username: p.Username,
		IsAdmin:  p.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(p.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// SignAccess issues an access token for the given identity.
func (s *TokenService) SignAccess(p Payload) (string, error) {
	return s.sign(p, s.accessSecret, s.accessTTL)
}

// SignRefresh issues a refresh token and returns its expiry so the
// caller can persist the session record with the same deadline.
func (s *TokenService) SignRefresh(p Payload) (string, time.Time, error) {
	signed, err := s.sign(p, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, time.Now().Add(s.refreshTTL), nil
}

func (s *TokenService) parse(tokenStr string, secret []byte) (Payload, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrTokenExpired
		}
		return Payload{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Payload{}, ErrTokenInvalid
	}

	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return Payload{}, ErrTokenInvalid
	}

	return Payload{UserID: uint(id), Username: c.Username, IsAdmin: c.IsAdmin}, nil
}

// ParseAccess verifies an access token's signature and expiry and
// returns the identity it embeds. Returns ErrTokenExpired or
// ErrTokenInvalid on failure.
func (s *TokenService) ParseAccess(tokenStr string) (Payload, error) {
	return s.parse(tokenStr, s.accessSecret)
}

// ParseRefresh verifies a refresh token.
func (s *TokenService) ParseRefresh(tokenStr string) (Payload, error) {
	return s.parse(tokenStr, s.refreshSecret)
}
