package service

import (
	"context"
	"log/slog"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/model"
	"github.com/sakif/fancy-blog/internal/repository"
)

// CommentService implements the comment rules: anyone authenticated may
// comment, only the author may edit, the author or an admin may delete.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	logger   *slog.Logger
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, logger *slog.Logger) *CommentService {
	return &CommentService{comments: comments, posts: posts, logger: logger}
}

// List pages a post's comments, newest first. A missing post yields an
// empty page, not an error.
func (s *CommentService) List(ctx context.Context, postID, cursor uint, limit, maxPageSize int) ([]model.Comment, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return s.comments.ListByPost(ctx, repository.CommentListOptions{
		PostID: postID,
		Cursor: cursor,
		Limit:  limit,
	})
}

// Create adds a comment to an existing post.
func (s *CommentService) Create(ctx context.Context, ident auth.Identity, postID uint, content string) (*model.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:   postID,
		AuthorID: ident.ID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.Info("comment created",
		slog.Uint64("commentID", uint64(comment.ID)),
		slog.Uint64("postID", uint64(postID)),
	)
	return comment, nil
}

// Update edits a comment's content. Comments of other users — admin or
// not — are reported as missing rather than forbidden, so the endpoint
// does not leak which comment ids exist.
func (s *CommentService) Update(ctx context.Context, ident auth.Identity, id uint, content string) (*model.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != ident.ID {
		return nil, apperror.NotFound("Comment")
	}

	comment.Content = content
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete removes a comment. Authors delete their own; admins delete any.
func (s *CommentService) Delete(ctx context.Context, ident auth.Identity, id uint) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != ident.ID && !ident.IsAdmin {
		return apperror.NotFound("Comment")
	}
	return s.comments.Delete(ctx, comment.ID)
}
