package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/fancy-blog/internal/model"
	"github.com/sakif/fancy-blog/internal/repository"
)

// PostService implements the post and tag rules. Reads are public;
// writes are restricted to admins by the router, not here.
type PostService struct {
	posts       repository.PostRepository
	maxPageSize int
	logger      *slog.Logger
}

func NewPostService(posts repository.PostRepository, maxPageSize int, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, maxPageSize: maxPageSize, logger: logger}
}

// ListParams are the public listing filters. Zero values mean "no
// filter"; Limit is capped by the configured page size.
type ListParams struct {
	Cursor  uint
	Limit   int
	Tags    string // comma-separated tag names
	From    *time.Time
	To      *time.Time
	IsAdmin bool
}

// splitTags turns "tag1, tag2" into trimmed names, dropping empties.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// List returns a page of posts, newest update first. Only admins see
// unpublished posts.
func (s *PostService) List(ctx context.Context, params ListParams) ([]model.Post, error) {
	limit := params.Limit
	if limit <= 0 || limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	return s.posts.List(ctx, repository.PostListOptions{
		Cursor:             params.Cursor,
		Limit:              limit,
		Tags:               splitTags(params.Tags),
		From:               params.From,
		To:                 params.To,
		IncludeUnpublished: params.IsAdmin,
	})
}

func (s *PostService) Get(ctx context.Context, id uint) (*model.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// Create stores a new post for the given author. Tags are a
// comma-separated string, created on first use.
func (s *PostService) Create(ctx context.Context, authorID uint, title, content, tags string) (*model.Post, error) {
	post := &model.Post{
		Title:     title,
		Content:   content,
		Published: true,
		AuthorID:  authorID,
	}
	if err := s.posts.Create(ctx, post, splitTags(tags)); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		slog.Uint64("postID", uint64(post.ID)),
		slog.Uint64("authorID", uint64(authorID)),
	)
	return post, nil
}

// PostUpdateParams are the optional fields of a post update. A non-nil
// Tags string replaces the whole tag set.
type PostUpdateParams struct {
	Title     *string
	Content   *string
	Tags      *string
	Published *bool
}

func (s *PostService) Update(ctx context.Context, id uint, params PostUpdateParams) (*model.Post, error) {
	upd := repository.PostUpdate{
		Title:     params.Title,
		Content:   params.Content,
		Published: params.Published,
	}
	if params.Tags != nil {
		// An explicit empty string clears the set; the store only treats
		// a nil slice as "leave unchanged".
		upd.Tags = splitTags(*params.Tags)
		if upd.Tags == nil {
			upd.Tags = []string{}
		}
	}
	return s.posts.Update(ctx, id, upd)
}

func (s *PostService) Delete(ctx context.Context, id uint) error {
	return s.posts.SoftDelete(ctx, id)
}

// ListTags returns the tags of published posts with their counts.
func (s *PostService) ListTags(ctx context.Context) ([]repository.TagCount, error) {
	return s.posts.ListTags(ctx)
}
