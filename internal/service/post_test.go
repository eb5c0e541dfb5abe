package service

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/sakif/fancy-blog/internal/apperror"
)

func newTestPostService() (*PostService, *fakePosts) {
	posts := newFakePosts()
	return NewPostService(posts, 30, slog.New(slog.DiscardHandler)), posts
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"golang", []string{"golang"}},
		{"golang,web", []string{"golang", "web"}},
		{" golang , web ", []string{"golang", "web"}},
		{"golang,,web,", []string{"golang", "web"}},
	}
	for _, tt := range tests {
		if got := splitTags(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitTags(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPostList_LimitCap(t *testing.T) {
	svc, posts := newTestPostService()
	ctx := context.Background()

	tests := []struct {
		requested int
		want      int
	}{
		{0, 30},   // default
		{10, 10},  // within the cap
		{500, 30}, // over the cap
		{-1, 30},  // nonsense
	}
	for _, tt := range tests {
		if _, err := svc.List(ctx, ListParams{Limit: tt.requested}); err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if posts.lastOpts.Limit != tt.want {
			t.Errorf("List(limit=%d) passed limit %d, want %d", tt.requested, posts.lastOpts.Limit, tt.want)
		}
	}
}

func TestPostList_AdminSeesUnpublished(t *testing.T) {
	svc, posts := newTestPostService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, "A published post", "content", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	draft, err := svc.Create(ctx, 1, "A draft", "content", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Update(ctx, draft.ID, PostUpdateParams{Published: ptr(false)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	public, _ := svc.List(ctx, ListParams{})
	if len(public) != 1 {
		t.Errorf("public listing has %d posts, want 1", len(public))
	}
	if posts.lastOpts.IncludeUnpublished {
		t.Error("public listing asked for unpublished posts")
	}

	admin, _ := svc.List(ctx, ListParams{IsAdmin: true})
	if len(admin) != 2 {
		t.Errorf("admin listing has %d posts, want 2", len(admin))
	}
}

func TestPostList_TagsPassedSplit(t *testing.T) {
	svc, posts := newTestPostService()

	if _, err := svc.List(context.Background(), ListParams{Tags: "golang, web"}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(posts.lastOpts.Tags, []string{"golang", "web"}) {
		t.Errorf("tags filter = %v", posts.lastOpts.Tags)
	}
}

func TestPostCreate_Defaults(t *testing.T) {
	svc, _ := newTestPostService()

	post, err := svc.Create(context.Background(), 7, "Hello", "world", "golang,web")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !post.Published {
		t.Error("new posts must default to published")
	}
	if post.AuthorID != 7 {
		t.Errorf("AuthorID = %d, want 7", post.AuthorID)
	}
	if len(post.Tags) != 2 {
		t.Errorf("tags = %v", post.Tags)
	}
}

func TestPostUpdate_NilTagsUnchanged(t *testing.T) {
	svc, _ := newTestPostService()
	ctx := context.Background()

	post, _ := svc.Create(ctx, 1, "Hello", "world", "golang")

	// Title-only update keeps the tag set.
	updated, err := svc.Update(ctx, post.ID, PostUpdateParams{Title: ptr("New title")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0].Name != "golang" {
		t.Errorf("tags after title update = %v", updated.Tags)
	}

	// An explicit empty string clears the tags.
	updated, err = svc.Update(ctx, post.ID, PostUpdateParams{Tags: ptr("")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(updated.Tags) != 0 {
		t.Errorf("tags after clearing = %v", updated.Tags)
	}
}

func TestPostDelete_Missing(t *testing.T) {
	svc, _ := newTestPostService()

	if err := svc.Delete(context.Background(), 999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}
