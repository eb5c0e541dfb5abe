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

var _ repository.PostRepository = (*PostDB)(nil)

// PostDB persists posts and their tag associations.
type PostDB struct {
	conn *gorm.DB
}

// resolveTags turns tag names into rows, creating missing ones. Runs
// inside the caller's transaction.
func resolveTags(tx *gorm.DB, names []string) ([]model.Tag, error) {
	tags := make([]model.Tag, 0, len(names))
	for _, name := range names {
		var tag model.Tag
		if err := tx.Where(model.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, fmt.Errorf("gormdb: resolving tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (p *PostDB) Create(ctx context.Context, post *model.Post, tags []string) error {
	return p.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := resolveTags(tx, tags)
		if err != nil {
			return err
		}
		post.Tags = resolved
		if err := tx.Create(post).Error; err != nil {
			return fmt.Errorf("gormdb: creating post: %w", err)
		}
		return nil
	})
}

func (p *PostDB) GetByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	err := p.conn.WithContext(ctx).Preload("Tags").Preload("Author").First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Post")
		}
		return nil, fmt.Errorf("gormdb: getting post %d: %w", id, err)
	}
	return &post, nil
}

// List returns a page of posts, newest update first. The cursor is the
// last post of the previous page: rows at or after its (updated_at, id)
// position are skipped, so a page boundary stays stable while new posts
// arrive.
func (p *PostDB) List(ctx context.Context, opts repository.PostListOptions) ([]model.Post, error) {
	q := p.conn.WithContext(ctx).Model(&model.Post{}).
		Preload("Tags").Preload("Author").
		Order("posts.updated_at DESC, posts.id DESC")

	if !opts.IncludeUnpublished {
		q = q.Where("posts.published = ?", true)
	}

	if len(opts.Tags) > 0 {
		q = q.Distinct("posts.*").
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name IN ?", opts.Tags)
	}

	if opts.From != nil {
		q = q.Where("posts.updated_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("posts.updated_at <= ?", *opts.To)
	}

	if opts.Cursor != 0 {
		var anchor model.Post
		err := p.conn.WithContext(ctx).Select("updated_at", "id").First(&anchor, opts.Cursor).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Stale cursor (post deleted since): return an empty page
			// rather than restarting the listing from the top.
			return []model.Post{}, nil
		case err != nil:
			return nil, fmt.Errorf("gormdb: resolving post cursor %d: %w", opts.Cursor, err)
		}
		q = q.Where(
			"posts.updated_at < ? OR (posts.updated_at = ? AND posts.id < ?)",
			anchor.UpdatedAt, anchor.UpdatedAt, anchor.ID,
		)
	}

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var posts []model.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("gormdb: listing posts: %w", err)
	}
	return posts, nil
}

// Update applies the non-nil fields and, when Tags is non-nil, replaces
// the whole tag set. Returns the updated post with associations loaded.
func (p *PostDB) Update(ctx context.Context, id uint, upd repository.PostUpdate) (*model.Post, error) {
	err := p.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Post")
			}
			return fmt.Errorf("gormdb: getting post %d: %w", id, err)
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
		if err := tx.Save(&post).Error; err != nil {
			return fmt.Errorf("gormdb: updating post %d: %w", id, err)
		}

		if upd.Tags != nil {
			resolved, err := resolveTags(tx, upd.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(&post).Association("Tags").Replace(resolved); err != nil {
				return fmt.Errorf("gormdb: replacing tags of post %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.GetByID(ctx, id)
}

func (p *PostDB) SoftDelete(ctx context.Context, id uint) error {
	result := p.conn.WithContext(ctx).Delete(&model.Post{}, id)
	if result.Error != nil {
		return fmt.Errorf("gormdb: deleting post %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("Post")
	}
	return nil
}

// ListTags counts published, non-deleted posts per tag. gorm's implicit
// soft-delete scope does not apply to a hand-written join, so the
// deleted_at filter is explicit here.
func (p *PostDB) ListTags(ctx context.Context) ([]repository.TagCount, error) {
	var counts []repository.TagCount
	err := p.conn.WithContext(ctx).Model(&model.Tag{}).
		Select("tags.name AS tag, COUNT(posts.id) AS count").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("JOIN posts ON posts.id = post_tags.post_id").
		Where("posts.published = ? AND posts.deleted_at IS NULL", true).
		Group("tags.name").
		Order("count DESC, tags.name ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("gormdb: listing tags: %w", err)
	}
	if counts == nil {
		counts = []repository.TagCount{}
	}
	return counts, nil
}
