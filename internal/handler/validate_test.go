package handler

import (
	"errors"
	"strings"
	"testing"

	"github.com/sakif/fancy-blog/internal/apperror"
)

func checkMessage(t *testing.T, s any, want string) {
	t.Helper()
	err := checkStruct(newValidator(), s)
	if want == "" {
		if err != nil {
			t.Errorf("checkStruct(%+v) = %v, want nil", s, err)
		}
		return
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("checkStruct(%+v) = %v, want AppError", s, err)
	}
	if appErr.Message != want {
		t.Errorf("message = %q, want %q", appErr.Message, want)
	}
}

func TestCheckStruct_Signup(t *testing.T) {
	checkMessage(t, signupRequest{Username: "alice_cooper", Password: "hunter22"}, "")

	checkMessage(t, signupRequest{Username: "abc", Password: "hunter22"},
		"Username must be between 6 and 64 characters")
	checkMessage(t, signupRequest{Username: strings.Repeat("a", 65), Password: "hunter22"},
		"Username must be between 6 and 64 characters")
	checkMessage(t, signupRequest{Username: "has space", Password: "hunter22"},
		"Username must be alphanumeric characters, and '_' or '-'")
	checkMessage(t, signupRequest{Username: "alice_cooper", Password: "short"},
		"Password must be between 6 and 64 characters")

	// Multiple failures are folded into one space-joined message.
	checkMessage(t, signupRequest{Username: "abc", Password: "short"},
		"Username must be between 6 and 64 characters Password must be between 6 and 64 characters")
}

// Login enforces the same field rules as signup: input that could never
// belong to an account is rejected before the credential check.
func TestCheckStruct_Login(t *testing.T) {
	checkMessage(t, loginRequest{Username: "alice_cooper", Password: "hunter22"}, "")

	checkMessage(t, loginRequest{Username: "a", Password: "a"},
		"Username must be between 6 and 64 characters Password must be between 6 and 64 characters")
	checkMessage(t, loginRequest{Username: "testuser!", Password: "testpassword"},
		"Username must be alphanumeric characters, and '_' or '-'")
}

func TestCheckStruct_UpdateUserOptionalFields(t *testing.T) {
	// An all-nil update passes validation; the service decides whether
	// an empty update is meaningful.
	checkMessage(t, updateUserRequest{}, "")

	bad := "x"
	checkMessage(t, updateUserRequest{AdminCode: &bad},
		"Admin code must be between 6 and 64 characters")
}

func TestCheckStruct_Post(t *testing.T) {
	checkMessage(t, createPostRequest{Title: "Hello", Content: "World", Tags: "golang, web"}, "")
	checkMessage(t, createPostRequest{Title: "", Content: "World"},
		"Title must be between 1 and 255 characters")
	checkMessage(t, createPostRequest{Title: strings.Repeat("t", 256), Content: "World"},
		"Title must be between 1 and 255 characters")
	checkMessage(t, createPostRequest{Title: "Hello", Content: ""},
		"Content must be at least 1 character")
	checkMessage(t, createPostRequest{Title: "Hello", Content: "World", Tags: "bad tag!"},
		"Tags must be alphanumeric")
}

func TestCheckStruct_Comment(t *testing.T) {
	checkMessage(t, commentRequest{Content: "Nice post!"}, "")
	checkMessage(t, commentRequest{Content: ""},
		"Comment must be between 1 and 1024 characters")
	checkMessage(t, commentRequest{Content: strings.Repeat("c", 1025)},
		"Comment must be between 1 and 1024 characters")
}

func TestAbstract(t *testing.T) {
	if got := abstract("short", 100); got != "short" {
		t.Errorf("abstract(short) = %q", got)
	}

	long := strings.Repeat("a", 150)
	got := abstract(long, 100)
	if got != strings.Repeat("a", 100)+"..." {
		t.Errorf("abstract(long) = %q", got)
	}

	// The cut must not split a multi-byte rune.
	got = abstract(strings.Repeat("ä", 150), 100)
	if got != strings.Repeat("ä", 100)+"..." {
		t.Errorf("abstract(multibyte) length = %d runes", len([]rune(got)))
	}
}
