// Package service holds the business rules, between the HTTP handlers
// and the repositories.
//
//	handler (HTTP) → service (rules) → repository (gorm)
//	              ↘ auth (JWT, bcrypt, OAuth providers)
//
// Services never touch HTTP types and handlers never touch the store, so
// each layer is testable with fakes for the one below.
package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/model"
	"github.com/sakif/fancy-blog/internal/repository"
)

// UserService implements account lifecycle and session rules.
type UserService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	adminCode string
	logger    *slog.Logger
}

// NewUserService wires a UserService. adminCode is the server-side
// secret that a profile update must present to gain the admin flag; an
// empty code disables promotion entirely.
func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	adminCode string,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		adminCode: adminCode,
		logger:    logger,
	}
}

// AuthResult bundles what an authentication operation produced: the user
// row, the access token for the response body, and the refresh session
// id for the HttpOnly cookie.
type AuthResult struct {
	User      *model.User
	Token     string
	SessionID string
}

// payloadOf builds the token payload from the current user row.
func payloadOf(user *model.User) auth.Payload {
	return auth.Payload{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}
}

// ensureToken guarantees user.CurrentToken is a valid access token whose
// claims match the row. The cached token is reused whenever possible:
// logging in twice, or updating only the password, hands back the very
// same token. Only a material change (username, admin flag) or expiry
// forces a re-sign. Returns whether a new token was minted.
func (s *UserService) ensureToken(user *model.User) (bool, error) {
	if user.CurrentToken != "" {
		p, err := s.tokens.ParseAccess(user.CurrentToken)
		if err == nil && p == payloadOf(user) {
			return false, nil
		}
	}

	token, err := s.tokens.SignAccess(payloadOf(user))
	if err != nil {
		return false, err
	}
	user.CurrentToken = token
	return true, nil
}

// openSession creates a fresh server-side refresh session for the user.
func (s *UserService) openSession(ctx context.Context, user *model.User) (string, error) {
	refresh, expiresAt, err := s.tokens.SignRefresh(payloadOf(user))
	if err != nil {
		return "", err
	}

	session := &model.RefreshSession{
		ID:        xid.New().String(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	return session.ID, nil
}

// Signup registers a new account and logs it in. A taken username is a
// validation failure, consistent with the other signup field errors; the
// unique index decides the winner when two signups race.
func (s *UserService) Signup(ctx context.Context, username, password string) (*AuthResult, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Username: username, PasswordHash: &hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", "Username already exists")
		}
		return nil, err
	}

	if _, err := s.ensureToken(user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	sessionID, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Uint64("userID", uint64(user.ID)),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Token: user.CurrentToken, SessionID: sessionID}, nil
}

// Login verifies the credentials and returns the current access token —
// the same token as before when nothing about the account changed in
// between. Absent users and wrong passwords are indistinguishable to the
// caller.
func (s *UserService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("Invalid username or password")
		}
		return nil, err
	}

	if user.PasswordHash == nil || !s.passwords.Verify(*user.PasswordHash, password) {
		return nil, apperror.Unauthenticated("Invalid username or password")
	}

	minted, err := s.ensureToken(user)
	if err != nil {
		return nil, err
	}
	if minted {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	sessionID, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.Uint64("userID", uint64(user.ID)))

	return &AuthResult{User: user, Token: user.CurrentToken, SessionID: sessionID}, nil
}

// Profile returns the user with its linked OAuth providers.
func (s *UserService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	return s.users.GetWithOauthAccounts(ctx, userID)
}

// UpdateParams are the optional fields of a profile update. Nil means
// "leave unchanged".
type UpdateParams struct {
	Username  *string
	Password  *string
	AdminCode *string
}

// Update applies a partial profile update.
//
// A new username or a successful admin promotion is a material change:
// the cached access token is re-signed, and tokens minted before stop
// validating (the session middleware cross-checks the store). A
// password-only update keeps the token byte-identical. An admin code
// that does not match the server secret is ignored rather than rejected.
func (s *UserService) Update(ctx context.Context, userID uint, params UpdateParams) (*AuthResult, error) {
	if params.Username == nil && params.Password == nil && params.AdminCode == nil {
		return nil, apperror.ValidationFailed("", "No fields to update")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.Username != nil && *params.Username != user.Username {
		user.Username = *params.Username
	}
	if params.AdminCode != nil && s.adminCode != "" && *params.AdminCode == s.adminCode {
		user.IsAdmin = true
	}
	if params.Password != nil {
		hash, err := s.passwords.Hash(*params.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	if _, err := s.ensureToken(user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated",
		slog.Uint64("userID", uint64(user.ID)),
		slog.Bool("isAdmin", user.IsAdmin),
	)

	return &AuthResult{User: user, Token: user.CurrentToken}, nil
}

// Delete soft-deletes the account. The username is replaced with a
// marker derived from a hash of the old name, freeing the unique
// constraint without opening a reuse race, and every refresh session of
// the user is dropped. Deleting an already-deleted account reports
// NotFound.
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	sum := sha256.Sum256([]byte(user.Username))
	scrambled := fmt.Sprintf("deleted-%x-%d", sum[:8], user.ID)

	if err := s.users.SoftDelete(ctx, userID, scrambled); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("user deleted", slog.Uint64("userID", uint64(userID)))
	return nil
}

// Logout drops all refresh sessions of the user. The access token stays
// technically valid until expiry; without a refresh session it cannot be
// renewed.
func (s *UserService) Logout(ctx context.Context, userID uint) error {
	return s.sessions.DeleteByUser(ctx, userID)
}

// Refresh exchanges a live refresh session for a new access token. The
// token payload is re-derived from a fresh user lookup — whatever the
// old refresh token said about the user is not trusted. The session is
// rotated: the old id stops working, a new one is handed back.
func (s *UserService) Refresh(ctx context.Context, sessionID string) (*AuthResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("Invalid session")
		}
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, apperror.Unauthenticated("Session expired, please login again")
	}
	if _, err := s.tokens.ParseRefresh(session.Token); err != nil {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, apperror.Unauthenticated("Session expired, please login again")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, apperror.Unauthenticated("User not found")
	}

	token, err := s.tokens.SignAccess(payloadOf(user))
	if err != nil {
		return nil, err
	}
	user.CurrentToken = token
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return nil, err
	}
	newSessionID, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token, SessionID: newSessionID}, nil
}
