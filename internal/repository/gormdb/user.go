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

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB persists users and their OAuth identity links.
type UserDB struct {
	conn *gorm.DB
}

// Create inserts a new user. A username collision surfaces as
// apperror.ErrConflict — the unique index, not the application, is the
// arbiter when two signups race.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	if err := u.conn.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Conflict("Username already exists")
		}
		return fmt.Errorf("gormdb: creating user: %w", err)
	}
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := u.conn.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("gormdb: getting user %d: %w", id, err)
	}
	return &user, nil
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := u.conn.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("gormdb: getting user %q: %w", username, err)
	}
	return &user, nil
}

func (u *UserDB) GetWithOauthAccounts(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := u.conn.WithContext(ctx).Preload("OauthAccounts").First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("gormdb: getting user %d: %w", id, err)
	}
	return &user, nil
}

// Update saves the full user row. A username that collides with another
// live user comes back as apperror.ErrConflict.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	result := u.conn.WithContext(ctx).Model(user).Select(
		"username", "password_hash", "is_admin", "current_token",
	).Updates(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperror.Conflict("Username already exists")
		}
		return fmt.Errorf("gormdb: updating user %d: %w", user.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("user")
	}
	return nil
}

// SoftDelete renames the user to the scrambled marker, drops its OAuth
// identity links and marks the row deleted, in one transaction. The
// rename frees the unique username for future signups; releasing the
// links frees the (provider, subject) identities, so the same provider
// account can sign up fresh later. The row itself stays for referential
// integrity.
func (u *UserDB) SoftDelete(ctx context.Context, id uint, scrambledUsername string) error {
	return u.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.User{}).Where("id = ?", id).
			Update("username", scrambledUsername)
		if result.Error != nil {
			return fmt.Errorf("gormdb: scrambling username of user %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NotFound("user")
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.OauthAccount{}).Error; err != nil {
			return fmt.Errorf("gormdb: unlinking oauth accounts of user %d: %w", id, err)
		}
		if err := tx.Delete(&model.User{}, id).Error; err != nil {
			return fmt.Errorf("gormdb: deleting user %d: %w", id, err)
		}
		return nil
	})
}

// GetByOauth finds the live owner of a (provider, subject) link. Links
// whose owner is soft deleted do not match: the join goes through the
// users table, and gorm scopes that to non-deleted rows.
func (u *UserDB) GetByOauth(ctx context.Context, provider, subject string) (*model.User, error) {
	var user model.User
	err := u.conn.WithContext(ctx).
		Joins("JOIN oauth_accounts ON oauth_accounts.user_id = users.id").
		Where("oauth_accounts.provider = ? AND oauth_accounts.subject = ?", provider, subject).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("gormdb: getting user by oauth %s/%s: %w", provider, subject, err)
	}
	return &user, nil
}

func (u *UserDB) BindOauth(ctx context.Context, userID uint, provider, subject string) error {
	link := model.OauthAccount{Provider: provider, Subject: subject, UserID: userID}
	if err := u.conn.WithContext(ctx).Create(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Conflict("This account has bound to other user")
		}
		return fmt.Errorf("gormdb: binding oauth %s/%s: %w", provider, subject, err)
	}
	return nil
}

// CreateWithOauth provisions a brand-new account from a provider
// profile. User and link are written in one transaction so a failure
// leaves neither an orphan link nor a passwordless user with no way in.
func (u *UserDB) CreateWithOauth(ctx context.Context, user *model.User, provider, subject string) error {
	return u.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("Username already exists")
			}
			return fmt.Errorf("gormdb: creating oauth user: %w", err)
		}
		link := model.OauthAccount{Provider: provider, Subject: subject, UserID: user.ID}
		if err := tx.Create(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("This account has bound to other user")
			}
			return fmt.Errorf("gormdb: creating oauth link: %w", err)
		}
		return nil
	})
}
