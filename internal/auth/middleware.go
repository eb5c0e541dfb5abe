package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/fancy-blog/internal/repository"
)

// Identity is the authenticated user attached to the request context,
// refreshed from the store on every request.
type Identity struct {
	ID       uint
	Username string
	IsAdmin  bool
}

// Failure explains why no identity is attached. The OAuth callback needs
// the distinction between "expired session" and "no session at all", so
// the session middleware records the reason instead of rejecting.
type Failure string

const (
	FailureNone         Failure = ""
	FailureNoToken      Failure = "Unauthorized"
	FailureTokenExpired Failure = "TokenExpired"
	FailureTokenInvalid Failure = "TokenInvalid"
	FailureUserNotFound Failure = "UserNotFound"
)

// contextKey is unexported so only this package can read or write the
// identity values in a request context.
type contextKey int

const (
	identityKey contextKey = iota
	failureKey
)

// Sessions extracts the bearer token, validates it and attaches either
// the fresh user identity or a Failure reason to the request context. It
// never short-circuits: downstream authorization (RequireAuth) decides
// whether the request may proceed.
//
// The user is looked up fresh and the token's embedded username and
// isAdmin must still match the row. A token minted before the account
// changed is reported as FailureUserNotFound, so stale privileges can
// never be replayed.
func Sessions(tokens *TokenService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenStr, ok := bearerToken(r)
			if !ok {
				ctx = context.WithValue(ctx, failureKey, FailureNoToken)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			payload, err := tokens.ParseAccess(tokenStr)
			if err != nil {
				failure := FailureTokenInvalid
				if errors.Is(err, ErrTokenExpired) {
					failure = FailureTokenExpired
				}
				ctx = context.WithValue(ctx, failureKey, failure)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			user, err := users.GetByID(ctx, payload.UserID)
			if err != nil || user.Username != payload.Username || user.IsAdmin != payload.IsAdmin {
				ctx = context.WithValue(ctx, failureKey, FailureUserNotFound)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = context.WithValue(ctx, identityKey, Identity{
				ID:       user.ID,
				Username: user.Username,
				IsAdmin:  user.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth guards a route. Requests without an identity get 401 with
// the recorded failure reason; with adminOnly set, non-admin identities
// get 403. The check only reads the context — no side effects.
func RequireAuth(adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				failure := FailureFromContext(r.Context())
				if failure == FailureNone {
					failure = FailureNoToken
				}
				writeAuthError(w, http.StatusUnauthorized, string(failure))
				return
			}
			if adminOnly && !ident.IsAdmin {
				writeAuthError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}

// FailureFromContext returns the recorded authentication failure.
// FailureNone means either no failure or no Sessions middleware ran.
func FailureFromContext(ctx context.Context) Failure {
	failure, _ := ctx.Value(failureKey).(Failure)
	return failure
}

// bearerToken pulls the token out of "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
