package service

// In-memory fakes for the repository interfaces. They mirror the store
// semantics the services rely on: assigned ids, unique usernames,
// unique (provider, subject) links, and not-found errors in the same
// shape as the gorm implementation.

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/model"
	"github.com/sakif/fancy-blog/internal/repository"
)

type oauthLink struct {
	provider string
	subject  string
	userID   uint
}

type fakeUsers struct {
	users   map[uint]*model.User
	deleted map[uint]bool
	links   []oauthLink
	nextID  uint
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uint]*model.User{}, deleted: map[uint]bool{}}
}

func (f *fakeUsers) usernameTaken(username string, exceptID uint) bool {
	for _, u := range f.users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (f *fakeUsers) Create(_ context.Context, user *model.User) error {
	if f.usernameTaken(user.Username, 0) {
		return apperror.Conflict("Username already exists")
	}
	f.nextID++
	user.ID = f.nextID
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	user, ok := f.users[id]
	if !ok || f.deleted[id] {
		return nil, apperror.NotFound("User")
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for id, u := range f.users {
		if u.Username == username && !f.deleted[id] {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("User")
}

func (f *fakeUsers) GetWithOauthAccounts(ctx context.Context, id uint) (*model.User, error) {
	user, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, l := range f.links {
		if l.userID == id {
			user.OauthAccounts = append(user.OauthAccounts, model.OauthAccount{
				Provider: l.provider, Subject: l.subject, UserID: id,
			})
		}
	}
	return user, nil
}

func (f *fakeUsers) Update(_ context.Context, user *model.User) error {
	if _, ok := f.users[user.ID]; !ok || f.deleted[user.ID] {
		return apperror.NotFound("User")
	}
	if f.usernameTaken(user.Username, user.ID) {
		return apperror.Conflict("Username already exists")
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUsers) SoftDelete(_ context.Context, id uint, scrambledUsername string) error {
	user, ok := f.users[id]
	if !ok || f.deleted[id] {
		return apperror.NotFound("User")
	}
	user.Username = scrambledUsername
	f.deleted[id] = true
	kept := f.links[:0]
	for _, l := range f.links {
		if l.userID != id {
			kept = append(kept, l)
		}
	}
	f.links = kept
	return nil
}

func (f *fakeUsers) GetByOauth(ctx context.Context, provider, subject string) (*model.User, error) {
	for _, l := range f.links {
		if l.provider == provider && l.subject == subject {
			return f.GetByID(ctx, l.userID)
		}
	}
	return nil, apperror.NotFound("User")
}

func (f *fakeUsers) BindOauth(_ context.Context, userID uint, provider, subject string) error {
	for _, l := range f.links {
		if l.provider == provider && l.subject == subject {
			return apperror.Conflict("This account has bound to other user")
		}
	}
	f.links = append(f.links, oauthLink{provider: provider, subject: subject, userID: userID})
	return nil
}

func (f *fakeUsers) CreateWithOauth(ctx context.Context, user *model.User, provider, subject string) error {
	if err := f.Create(ctx, user); err != nil {
		return err
	}
	return f.BindOauth(ctx, user.ID, provider, subject)
}

type fakeSessions struct {
	sessions map[string]*model.RefreshSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*model.RefreshSession{}}
}

func (f *fakeSessions) Create(_ context.Context, session *model.RefreshSession) error {
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*model.RefreshSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("Session")
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return apperror.NotFound("Session")
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) DeleteByUser(_ context.Context, userID uint) error {
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessions) countForUser(userID uint) int {
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

type fakePosts struct {
	posts    map[uint]*model.Post
	nextID   uint
	lastOpts repository.PostListOptions
	tags     []repository.TagCount
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[uint]*model.Post{}}
}

func (f *fakePosts) Create(_ context.Context, post *model.Post, tags []string) error {
	f.nextID++
	post.ID = f.nextID
	for _, name := range tags {
		post.Tags = append(post.Tags, model.Tag{Name: name})
	}
	stored := *post
	f.posts[post.ID] = &stored
	return nil
}

func (f *fakePosts) GetByID(_ context.Context, id uint) (*model.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("Post")
	}
	copied := *post
	return &copied, nil
}

func (f *fakePosts) List(_ context.Context, opts repository.PostListOptions) ([]model.Post, error) {
	f.lastOpts = opts
	result := make([]model.Post, 0, len(f.posts))
	for _, p := range f.posts {
		if !p.Published && !opts.IncludeUnpublished {
			continue
		}
		result = append(result, *p)
	}
	return result, nil
}

func (f *fakePosts) Update(ctx context.Context, id uint, upd repository.PostUpdate) (*model.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("Post")
	}
	if upd.Title != nil {
		post.Title = *upd.Title
	}
	if upd.Content != nil {
		post.Content = *upd.Content
	}
	if upd.Published != nil {
		post.Published = *upd.Published
	}
	if upd.Tags != nil {
		post.Tags = nil
		for _, name := range upd.Tags {
			post.Tags = append(post.Tags, model.Tag{Name: name})
		}
	}
	return f.GetByID(ctx, id)
}

func (f *fakePosts) SoftDelete(_ context.Context, id uint) error {
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("Post")
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePosts) ListTags(_ context.Context) ([]repository.TagCount, error) {
	return f.tags, nil
}

type fakeComments struct {
	comments map[uint]*model.Comment
	nextID   uint
	lastOpts repository.CommentListOptions
}

func newFakeComments() *fakeComments {
	return &fakeComments{comments: map[uint]*model.Comment{}}
}

func (f *fakeComments) Create(_ context.Context, comment *model.Comment) error {
	f.nextID++
	comment.ID = f.nextID
	stored := *comment
	f.comments[comment.ID] = &stored
	return nil
}

func (f *fakeComments) GetByID(_ context.Context, id uint) (*model.Comment, error) {
	comment, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("Comment")
	}
	copied := *comment
	return &copied, nil
}

func (f *fakeComments) ListByPost(_ context.Context, opts repository.CommentListOptions) ([]model.Comment, error) {
	f.lastOpts = opts
	result := []model.Comment{}
	for _, c := range f.comments {
		if c.PostID != opts.PostID {
			continue
		}
		if opts.Cursor != 0 && c.ID >= opts.Cursor {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (f *fakeComments) Update(_ context.Context, comment *model.Comment) error {
	stored, ok := f.comments[comment.ID]
	if !ok {
		return apperror.NotFound("Comment")
	}
	stored.Content = comment.Content
	return nil
}

func (f *fakeComments) Delete(_ context.Context, id uint) error {
	if _, ok := f.comments[id]; !ok {
		return apperror.NotFound("Comment")
	}
	delete(f.comments, id)
	return nil
}

// testEnv bundles a UserService with direct access to its fakes.
type testEnv struct {
	users    *fakeUsers
	sessions *fakeSessions
	svc      *UserService
	tokens   *auth.TokenService
}

func newTestEnv(t *testing.T, adminCode string) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService(
		"access-secret-16-chars!!", "refresh-secret-16-chars!",
		15*time.Minute, 7*24*time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	users := newFakeUsers()
	sessions := newFakeSessions()
	logger := slog.New(slog.DiscardHandler)

	return &testEnv{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		svc: NewUserService(
			users, sessions, tokens,
			auth.NewPasswordServiceForTest(bcrypt.MinCost),
			adminCode, logger,
		),
	}
}
