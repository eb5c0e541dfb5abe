// Package gormdb implements the repository interfaces on gorm with the
// SQLite driver.
//
// The DB struct owns the gorm connection and hands out one small
// repository type per aggregate (Users, Posts, Comments, Sessions). gorm
// error translation is enabled so unique-constraint violations surface
// as gorm.ErrDuplicatedKey regardless of driver, and soft deletes on
// users and posts are handled by gorm.DeletedAt — deleted rows never
// show up in queries unless asked for explicitly.
package gormdb

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sakif/fancy-blog/internal/model"
)

// DB wraps the gorm connection pool.
type DB struct {
	conn *gorm.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gormdb: opening database: %w", err)
	}

	// SQLite allows a single writer. One pooled connection serializes
	// writes in the pool instead of surfacing SQLITE_BUSY, and keeps an
	// in-memory database on the connection that migrated it.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("gormdb: accessing connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// WAL lets reads proceed while a write is in flight, which matters
	// once the HTTP server serves concurrent requests.
	if err := conn.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("gormdb: setting WAL mode: %w", err)
	}
	if err := conn.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
		return nil, fmt.Errorf("gormdb: enabling foreign keys: %w", err)
	}

	if err := conn.AutoMigrate(
		&model.User{},
		&model.OauthAccount{},
		&model.Post{},
		&model.Tag{},
		&model.Comment{},
		&model.RefreshSession{},
	); err != nil {
		return nil, fmt.Errorf("gormdb: running migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Users returns the user repository.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Posts returns the post repository.
func (db *DB) Posts() *PostDB { return &PostDB{conn: db.conn} }

// Comments returns the comment repository.
func (db *DB) Comments() *CommentDB { return &CommentDB{conn: db.conn} }

// Sessions returns the refresh session repository.
func (db *DB) Sessions() *SessionDB { return &SessionDB{conn: db.conn} }
