package gormdb

import (
	"context"
	"testing"

	"github.com/sakif/fancy-blog/internal/model"
)

// newTestDB opens a fresh in-memory database per test, so tests cannot
// see each other's rows and need no cleanup.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing database: %v", err)
		}
	})
	return db
}

func createTestUser(t *testing.T, u *UserDB, username string) *model.User {
	t.Helper()
	hash := "$2a$04$not.a.real.hash.but.fine.for.storage"
	user := &model.User{Username: username, PasswordHash: &hash}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %q: %v", username, err)
	}
	return user
}

func createTestPost(t *testing.T, p *PostDB, authorID uint, title string, tags ...string) *model.Post {
	t.Helper()
	post := &model.Post{
		Title:     title,
		Content:   "content of " + title,
		Published: true,
		AuthorID:  authorID,
	}
	if err := p.Create(context.Background(), post, tags); err != nil {
		t.Fatalf("creating test post %q: %v", title, err)
	}
	return post
}
