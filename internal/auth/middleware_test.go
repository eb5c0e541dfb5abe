package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/model"
)

// fakeUserStore implements just enough of repository.UserRepository for
// the middleware, which only calls GetByID.
type fakeUserStore struct {
	users map[uint]*model.User
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) Create(context.Context, *model.User) error  { return nil }
func (f *fakeUserStore) Update(context.Context, *model.User) error  { return nil }
func (f *fakeUserStore) SoftDelete(context.Context, uint, string) error { return nil }
func (f *fakeUserStore) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, apperror.NotFound("User")
}
func (f *fakeUserStore) GetWithOauthAccounts(context.Context, uint) (*model.User, error) {
	return nil, apperror.NotFound("User")
}
func (f *fakeUserStore) GetByOauth(context.Context, string, string) (*model.User, error) {
	return nil, apperror.NotFound("User")
}
func (f *fakeUserStore) BindOauth(context.Context, uint, string, string) error { return nil }
func (f *fakeUserStore) CreateWithOauth(context.Context, *model.User, string, string) error {
	return nil
}

// probe records what the middleware attached to the request context.
type probe struct {
	ident      Identity
	identOK    bool
	failure    Failure
	wasReached bool
}

func (p *probe) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.wasReached = true
		p.ident, p.identOK = IdentityFromContext(r.Context())
		p.failure = FailureFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func runSessions(t *testing.T, store *fakeUserStore, authorization string) (*probe, *httptest.ResponseRecorder) {
	t.Helper()
	ts := newTestTokenService(t)

	p := &probe{}
	handler := Sessions(ts, store)(p.handler())

	req := httptest.NewRequest(http.MethodGet, "/api/post", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return p, rec
}

func storeWith(users ...*model.User) *fakeUserStore {
	store := &fakeUserStore{users: map[uint]*model.User{}}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func TestSessions_NoToken(t *testing.T) {
	p, _ := runSessions(t, storeWith(), "")

	if !p.wasReached {
		t.Fatal("Sessions must not short-circuit requests without a token")
	}
	if p.identOK {
		t.Error("identity attached without a token")
	}
	if p.failure != FailureNoToken {
		t.Errorf("failure = %q, want %q", p.failure, FailureNoToken)
	}
}

func TestSessions_ValidToken(t *testing.T) {
	user := &model.User{ID: 7, Username: "bob_ross", IsAdmin: true}
	ts := newTestTokenService(t)
	token, err := ts.SignAccess(Payload{UserID: 7, Username: "bob_ross", IsAdmin: true})
	if err != nil {
		t.Fatalf("SignAccess() error = %v", err)
	}

	p := &probe{}
	handler := Sessions(ts, storeWith(user))(p.handler())
	req := httptest.NewRequest(http.MethodGet, "/api/post", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !p.identOK {
		t.Fatalf("no identity attached; failure = %q", p.failure)
	}
	want := Identity{ID: 7, Username: "bob_ross", IsAdmin: true}
	if p.ident != want {
		t.Errorf("identity = %+v, want %+v", p.ident, want)
	}
}

func TestSessions_ExpiredToken(t *testing.T) {
	expired, err := NewTokenService(
		"access-secret-16-chars!!", "refresh-secret-16-chars!",
		-time.Minute, time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _ := expired.SignAccess(Payload{UserID: 1, Username: "carol_s"})

	p, _ := runSessions(t, storeWith(), "Bearer "+token)

	if p.identOK {
		t.Error("identity attached for expired token")
	}
	if p.failure != FailureTokenExpired {
		t.Errorf("failure = %q, want %q", p.failure, FailureTokenExpired)
	}
}

func TestSessions_MangledToken(t *testing.T) {
	p, _ := runSessions(t, storeWith(), "Bearer not.a.token")

	if p.failure != FailureTokenInvalid {
		t.Errorf("failure = %q, want %q", p.failure, FailureTokenInvalid)
	}
}

func TestSessions_DeletedUser(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.SignAccess(Payload{UserID: 99, Username: "ghost_user"})

	p := &probe{}
	handler := Sessions(ts, storeWith())(p.handler())
	req := httptest.NewRequest(http.MethodGet, "/api/post", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if p.identOK {
		t.Error("identity attached for a user that no longer exists")
	}
	if p.failure != FailureUserNotFound {
		t.Errorf("failure = %q, want %q", p.failure, FailureUserNotFound)
	}
}

// A token minted before the account changed carries stale claims. The
// middleware compares them against the fresh row and rejects the token,
// which forces a refresh.
func TestSessions_StaleClaims(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.SignAccess(Payload{UserID: 5, Username: "old_name_here"})

	store := storeWith(&model.User{ID: 5, Username: "new_name_here"})
	p := &probe{}
	handler := Sessions(ts, store)(p.handler())
	req := httptest.NewRequest(http.MethodGet, "/api/post", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if p.identOK {
		t.Error("identity attached from a stale token")
	}
	if p.failure != FailureUserNotFound {
		t.Errorf("failure = %q, want %q", p.failure, FailureUserNotFound)
	}
}

func TestRequireAuth_NoIdentity(t *testing.T) {
	handler := RequireAuth(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler reached without identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req = req.WithContext(context.WithValue(req.Context(), failureKey, FailureTokenExpired))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["message"] != string(FailureTokenExpired) {
		t.Errorf("message = %q, want %q", body["message"], FailureTokenExpired)
	}
}

func TestRequireAuth_AdminOnly(t *testing.T) {
	handler := RequireAuth(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Regular user: 403.
	req := httptest.NewRequest(http.MethodPost, "/api/post", nil)
	req = req.WithContext(context.WithValue(req.Context(), identityKey, Identity{ID: 1, Username: "normal_user"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// Admin: passes through.
	req = httptest.NewRequest(http.MethodPost, "/api/post", nil)
	req = req.WithContext(context.WithValue(req.Context(), identityKey, Identity{ID: 2, Username: "admin_user", IsAdmin: true}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"Basic dXNlcg==", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
