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

var _ repository.SessionRepository = (*SessionDB)(nil)

// SessionDB persists server-side refresh sessions.
type SessionDB struct {
	conn *gorm.DB
}

func (s *SessionDB) Create(ctx context.Context, session *model.RefreshSession) error {
	if err := s.conn.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("gormdb: creating refresh session: %w", err)
	}
	return nil
}

func (s *SessionDB) GetByID(ctx context.Context, id string) (*model.RefreshSession, error) {
	var session model.RefreshSession
	err := s.conn.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("session")
		}
		return nil, fmt.Errorf("gormdb: getting refresh session: %w", err)
	}
	return &session, nil
}

func (s *SessionDB) Delete(ctx context.Context, id string) error {
	err := s.conn.WithContext(ctx).Delete(&model.RefreshSession{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("gormdb: deleting refresh session: %w", err)
	}
	return nil
}

// DeleteByUser removes every session of a user. Used by logout and by
// account deletion, so a deleted account cannot refresh its way back in.
func (s *SessionDB) DeleteByUser(ctx context.Context, userID uint) error {
	err := s.conn.WithContext(ctx).Where("user_id = ?", userID).
		Delete(&model.RefreshSession{}).Error
	if err != nil {
		return fmt.Errorf("gormdb: deleting refresh sessions of user %d: %w", userID, err)
	}
	return nil
}
