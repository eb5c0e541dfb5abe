package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/model"
)

// OAuthVerify decides what a provider callback means, given the profile
// the provider vouched for and whatever identity the request carried.
// The decision is ordered:
//
//  1. A known (provider, subject) link logs in its owner — unless the
//     request is authenticated as a different account, which is a
//     conflict: one provider identity belongs to at most one user.
//  2. An unknown link plus an expired session is refused. The expired
//     token hints at an account but cannot prove it, and binding to a
//     guessed account must never happen.
//  3. An unknown link plus an authenticated user binds the provider to
//     that account.
//  4. An unknown link and no session provisions a brand-new account,
//     username defaulted from the provider display name. User and link
//     are created atomically.
func (s *UserService) OAuthVerify(ctx context.Context, provider string, profile *auth.Profile, ident *auth.Identity, failure auth.Failure) (*AuthResult, error) {
	owner, err := s.users.GetByOauth(ctx, provider, profile.Subject)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	if owner != nil {
		if ident != nil && ident.ID != owner.ID {
			return nil, apperror.Conflict("This account has bound to other user")
		}
		return s.loginOauth(ctx, owner)
	}

	if ident == nil && failure == auth.FailureTokenExpired {
		return nil, apperror.Unauthenticated("Token expired, please login again")
	}

	if ident != nil {
		if err := s.users.BindOauth(ctx, ident.ID, provider, profile.Subject); err != nil {
			return nil, err
		}
		user, err := s.users.GetByID(ctx, ident.ID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("oauth provider bound",
			slog.Uint64("userID", uint64(user.ID)),
			slog.String("provider", provider),
		)
		return s.loginOauth(ctx, user)
	}

	user, err := s.provisionOauthUser(ctx, provider, profile)
	if err != nil {
		return nil, err
	}
	return s.loginOauth(ctx, user)
}

// loginOauth issues the token and refresh session for an OAuth login,
// with the same stable-token semantics as a password login.
func (s *UserService) loginOauth(ctx context.Context, user *model.User) (*AuthResult, error) {
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

	return &AuthResult{User: user, Token: user.CurrentToken, SessionID: sessionID}, nil
}

// provisionOauthUser creates a passwordless account for a first-time
// provider identity. When the display name is empty or already taken the
// username falls back to a generated one instead of failing the login.
func (s *UserService) provisionOauthUser(ctx context.Context, provider string, profile *auth.Profile) (*model.User, error) {
	username := profile.DisplayName
	if username == "" {
		username = "user-" + xid.New().String()
	}

	user := &model.User{Username: username}
	err := s.users.CreateWithOauth(ctx, user, provider, profile.Subject)
	if errors.Is(err, apperror.ErrConflict) {
		user = &model.User{Username: "user-" + xid.New().String()}
		err = s.users.CreateWithOauth(ctx, user, provider, profile.Subject)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered via oauth",
		slog.Uint64("userID", uint64(user.ID)),
		slog.String("provider", provider),
	)
	return user, nil
}
