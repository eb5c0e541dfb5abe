// Package model defines the gorm entities persisted by the application.
package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account.
//
// PasswordHash is a pointer because OAuth-only accounts have no password
// at all — a nil hash means "login with a password is impossible", which
// is distinct from an empty string that bcrypt would happily compare
// against.
//
// CurrentToken caches the most recently issued access token so that a
// login (or a no-op update) can return the same token instead of minting
// a new one. It is never serialized.
//
// DeletedAt gives the row gorm soft-delete semantics: deleted users are
// excluded from every query automatically. The unique index on Username
// still sees deleted rows, which is why deletion scrambles the username
// (see service.UserService.Delete).
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash *string        `json:"-"`
	IsAdmin      bool           `gorm:"not null;default:false" json:"isAdmin"`
	CurrentToken string         `json:"-"`
	CreatedAt    time.Time      `json:"-"`
	UpdatedAt    time.Time      `json:"-"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	OauthAccounts []OauthAccount `json:"-"`
}

// OauthAccount links a third-party identity to a local user. The
// (provider, subject) pair is unique: one provider account can be bound
// to at most one user. Rows are created when a provider profile is first
// seen and removed with their owner; they are never updated.
type OauthAccount struct {
	ID       uint   `gorm:"primarykey" json:"-"`
	Provider string `gorm:"size:32;not null;uniqueIndex:idx_oauth_provider_subject" json:"provider"`
	Subject  string `gorm:"size:255;not null;uniqueIndex:idx_oauth_provider_subject" json:"subject"`
	UserID   uint   `gorm:"not null;index" json:"-"`

	CreatedAt time.Time `json:"-"`
}

// RefreshSession is a server-side refresh token record. The session id
// travels to the client in an HttpOnly cookie; the refresh token itself
// never leaves the server. Sessions are rotated on every refresh and
// removed on logout and account deletion.
type RefreshSession struct {
	ID        string    `gorm:"primarykey;size:32"`
	UserID    uint      `gorm:"not null;index"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}
