package gormdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/model"
	"github.com/sakif/fancy-blog/internal/repository"
)

var _ repository.CommentRepository = (*CommentDB)(nil)

// CommentDB persists comments. Unlike users and posts, comments are
// removed for real on delete.
type CommentDB struct {
	conn *gorm.DB
}

func (c *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	if err := c.conn.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("gormdb: creating comment: %w", err)
	}
	return nil
}

func (c *CommentDB) GetByID(ctx context.Context, id uint) (*model.Comment, error) {
	var comment model.Comment
	if err := c.conn.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Comment")
		}
		return nil, fmt.Errorf("gormdb: getting comment %d: %w", id, err)
	}
	return &comment, nil
}

// ListByPost pages a post's comments newest first; the cursor continues
// into older comments. A missing post is not an error here: the page is
// simply empty.
func (c *CommentDB) ListByPost(ctx context.Context, opts repository.CommentListOptions) ([]model.Comment, error) {
	q := c.conn.WithContext(ctx).
		Where("post_id = ?", opts.PostID).
		Order("id DESC")

	if opts.Cursor != 0 {
		q = q.Where("id < ?", opts.Cursor)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var comments []model.Comment
	if err := q.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("gormdb: listing comments of post %d: %w", opts.PostID, err)
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return comments, nil
}

func (c *CommentDB) Update(ctx context.Context, comment *model.Comment) error {
	result := c.conn.WithContext(ctx).Model(comment).Select("content").Updates(comment)
	if result.Error != nil {
		return fmt.Errorf("gormdb: updating comment %d: %w", comment.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("Comment")
	}
	return nil
}

func (c *CommentDB) Delete(ctx context.Context, id uint) error {
	result := c.conn.WithContext(ctx).Delete(&model.Comment{}, id)
	if result.Error != nil {
		return fmt.Errorf("gormdb: deleting comment %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("Comment")
	}
	return nil
}
