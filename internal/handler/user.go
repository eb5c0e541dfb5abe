package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/service"
)

const (
	sessionCookie    = "session"
	oauthStateCookie = "oauth_state"
)

// UserHandler serves account endpoints: signup, login, refresh, logout,
// profile CRUD and the OAuth flows.
type UserHandler struct {
	users         *service.UserService
	providers     auth.Registry
	validate      *validator.Validate
	refreshTTL    time.Duration
	secureCookies bool
	logger        *slog.Logger
}

func NewUserHandler(users *service.UserService, providers auth.Registry, refreshTTL time.Duration, secureCookies bool, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:         users,
		providers:     providers,
		validate:      newValidator(),
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type signupRequest struct {
	Username string `json:"username" validate:"required,min=6,max=64,usernamechars"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}

// loginRequest shares the signup rules: input that could never belong
// to an account is rejected as a validation failure, before the
// credentials are ever checked.
type loginRequest struct {
	Username string `json:"username" validate:"required,min=6,max=64,usernamechars"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}

type updateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=6,max=64,usernamechars"`
	Password  *string `json:"password" validate:"omitempty,min=6,max=64"`
	AdminCode *string `json:"adminCode" validate:"omitempty,min=6,max=64"`
}

// authResponse is the body of every endpoint that (re)establishes a
// session. The refresh session id travels separately, in a cookie.
type authResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	Token    string `json:"token"`
}

func newAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		ID:       res.User.ID,
		Username: res.User.Username,
		IsAdmin:  res.User.IsAdmin,
		Token:    res.Token,
	}
}

// setSessionCookie stores the refresh session id. HttpOnly keeps it
// away from scripts; the token in the response body is what XSS could
// steal, and that one expires in minutes.
func (h *UserHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/api/user",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/api/user",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleSignup registers a new account and logs it in.
func (h *UserHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, res.SessionID)
	w.Header().Set("Location", "/api/user")
	writeJSON(w, http.StatusCreated, newAuthResponse(res))
}

// HandleLogin authenticates a username/password pair.
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, res.SessionID)
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

// HandleRefresh exchanges the session cookie for a fresh access token.
// The session is rotated, so a replayed cookie stops working.
func (h *UserHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, h.logger, apperror.Unauthenticated("No session"))
		return
	}

	res, err := h.users.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.clearSessionCookie(w)
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, res.SessionID)
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

// HandleLogout drops every refresh session of the calling user.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	if err := h.users.Logout(r.Context(), ident.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

type oauthProviderInfo struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
}

type profileResponse struct {
	ID             uint                `json:"id"`
	Username       string              `json:"username"`
	IsAdmin        bool                `json:"isAdmin"`
	OauthProviders []oauthProviderInfo `json:"oauthProviders"`
}

// HandleProfile returns the calling user's account, including which
// OAuth identities are bound to it.
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	user, err := h.users.Profile(r.Context(), ident.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	providers := make([]oauthProviderInfo, 0, len(user.OauthAccounts))
	for _, acc := range user.OauthAccounts {
		providers = append(providers, oauthProviderInfo{Provider: acc.Provider, Subject: acc.Subject})
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:             user.ID,
		Username:       user.Username,
		IsAdmin:        user.IsAdmin,
		OauthProviders: providers,
	})
}

// HandleUpdate applies a partial account update and returns the token
// to use from now on. An unchanged token means the old one is still
// good; a new one means clients must swap it out.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Update(r.Context(), ident.ID, service.UpdateParams{
		Username:  req.Username,
		Password:  req.Password,
		AdminCode: req.AdminCode,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

// HandleDelete removes the calling user's account.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	if err := h.users.Delete(r.Context(), ident.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleOAuthStart redirects the browser to the provider's consent
// page. A random state value is stored in a short-lived cookie and
// checked on callback.
func (h *UserHandler) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		writeError(w, h.logger, apperror.NotFound("Provider"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/user/oauth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleOAuthCallback completes the flow: verify state, trade the code
// for a profile, then log in, bind, or provision depending on what is
// already known about the provider account and the caller.
func (h *UserHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers[name]
	if !ok {
		writeError(w, h.logger, apperror.NotFound("Provider"))
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		writeError(w, h.logger, apperror.Unauthenticated("OAuth authorization was denied"))
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeError(w, h.logger, apperror.ValidationFailed("state", "Invalid OAuth state"))
		return
	}

	// The state is single-use: expire the cookie as soon as it has been
	// checked, whatever happens with the exchange below.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/user/oauth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "Missing OAuth code"))
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("OAuth exchange failed",
			slog.String("provider", name),
			slog.String("error", err.Error()))
		writeError(w, h.logger, apperror.Unauthenticated("OAuth verification failed"))
		return
	}

	// The session middleware never rejects: an expired or missing token
	// lands here too, with the failure reason attached for OAuthVerify
	// to branch on.
	var identPtr *auth.Identity
	if ident, ok := auth.IdentityFromContext(r.Context()); ok {
		identPtr = &ident
	}
	failure := auth.FailureFromContext(r.Context())

	res, err := h.users.OAuthVerify(r.Context(), name, profile, identPtr, failure)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, res.SessionID)
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}
