package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/fancy-blog/internal/apperror"
)

var usernameChars = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
var tagChars = regexp.MustCompile(`^[A-Za-z0-9]+(?:\s*,\s*[A-Za-z0-9]+)*$`)

// newValidator builds the shared request validator with the custom
// character-set rules used by a few fields.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("usernamechars", func(fl validator.FieldLevel) bool {
		return usernameChars.MatchString(fl.Field().String())
	})
	v.RegisterValidation("tagchars", func(fl validator.FieldLevel) bool {
		return tagChars.MatchString(fl.Field().String())
	})
	return v
}

// fieldMessage maps a failed rule to the message the client sees. The
// struct namespace disambiguates fields that share a name across
// request types, like post content versus comment content.
func fieldMessage(fe validator.FieldError) string {
	if strings.HasPrefix(fe.StructNamespace(), "comment") && fe.Field() == "Content" {
		return "Comment must be between 1 and 1024 characters"
	}
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "usernamechars" {
			return "Username must be alphanumeric characters, and '_' or '-'"
		}
		return "Username must be between 6 and 64 characters"
	case "Password":
		return "Password must be between 6 and 64 characters"
	case "AdminCode":
		return "Admin code must be between 6 and 64 characters"
	case "Title":
		return "Title must be between 1 and 255 characters"
	case "Content":
		return "Content must be at least 1 character"
	case "Tags":
		return "Tags must be alphanumeric"
	}
	return fe.Field() + " is invalid"
}

// checkStruct runs validation and folds every failure into a single
// space-joined message.
func checkStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperror.ValidationFailed("", strings.Join(msgs, " "))
}

// decodeJSON reads a request body into dst. Malformed JSON is a client
// error, not an internal one.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return apperror.ValidationFailed("", "Request body is required")
		}
		return apperror.ValidationFailed("", "Invalid request body")
	}
	return nil
}
