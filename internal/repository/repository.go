// Package repository declares the storage interfaces the services
// depend on. The gormdb subpackage provides the implementation; tests
// substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/fancy-blog/internal/model"
)

// PostListOptions narrows and pages the public post listing. Cursor is
// the id of the last post of the previous page; the cursor row itself is
// skipped. A zero Limit falls back to the caller's page-size cap.
type PostListOptions struct {
	Cursor             uint
	Limit              int
	Tags               []string
	From               *time.Time
	To                 *time.Time
	IncludeUnpublished bool
}

// CommentListOptions pages a post's comments, newest first. Cursor is
// the id of the last comment of the previous page; the page continues
// into older comments.
type CommentListOptions struct {
	PostID uint
	Cursor uint
	Limit  int
}

// TagCount is a tag name with the number of published posts carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// PostUpdate carries the optional fields of a post update. Nil means
// "leave unchanged"; a non-nil Tags slice replaces the whole tag set.
type PostUpdate struct {
	Title     *string
	Content   *string
	Published *bool
	Tags      []string
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetWithOauthAccounts preloads the user's OAuth identity links.
	GetWithOauthAccounts(ctx context.Context, id uint) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// SoftDelete marks the user deleted after renaming it to the given
	// scrambled username and removing its OAuth identity links, freeing
	// both the username and the (provider, subject) identities for reuse.
	SoftDelete(ctx context.Context, id uint, scrambledUsername string) error

	// GetByOauth finds the non-deleted owner of a (provider, subject)
	// identity link.
	GetByOauth(ctx context.Context, provider, subject string) (*model.User, error)
	// BindOauth links a provider identity to an existing user.
	BindOauth(ctx context.Context, userID uint, provider, subject string) error
	// CreateWithOauth creates a user and its identity link in one
	// transaction; neither row exists without the other.
	CreateWithOauth(ctx context.Context, user *model.User, provider, subject string) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.RefreshSession) error
	GetByID(ctx context.Context, id string) (*model.RefreshSession, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID uint) error
}

type PostRepository interface {
	// Create stores the post and attaches the named tags, creating tag
	// rows as needed.
	Create(ctx context.Context, post *model.Post, tags []string) error
	GetByID(ctx context.Context, id uint) (*model.Post, error)
	List(ctx context.Context, opts PostListOptions) ([]model.Post, error)
	Update(ctx context.Context, id uint, upd PostUpdate) (*model.Post, error)
	SoftDelete(ctx context.Context, id uint) error
	// ListTags returns tags of published, non-deleted posts with their
	// post counts, highest first and zero counts omitted.
	ListTags(ctx context.Context) ([]TagCount, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id uint) (*model.Comment, error)
	ListByPost(ctx context.Context, opts CommentListOptions) ([]model.Comment, error)
	Update(ctx context.Context, comment *model.Comment) error
	Delete(ctx context.Context, id uint) error
}
