package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/service"
)

// CommentHandler serves comment listing and CRUD. Comments hang off a
// post, addressed by the postId query parameter.
type CommentHandler struct {
	comments    *service.CommentService
	validate    *validator.Validate
	maxPageSize int
	logger      *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, maxPageSize int, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		comments:    comments,
		validate:    newValidator(),
		maxPageSize: maxPageSize,
		logger:      logger,
	}
}

type commentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1024"`
}

// postIDQuery parses the required postId query parameter.
func postIDQuery(r *http.Request) (uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("postId"))
	if raw == "" {
		return 0, apperror.ValidationFailed("postId", "Post ID is required")
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperror.ValidationFailed("postId", "Post ID must be an integer")
	}
	return uint(v), nil
}

// HandleList returns a page of comments for a post, newest first.
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cursor, err := uintQuery(r, "cursor", "Cursor must be an integer")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := uintQuery(r, "limit", "Limit must be an integer")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	comments, err := h.comments.List(r.Context(), postID, cursor, int(limit), h.maxPageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleCreate adds a comment to a post on behalf of the calling user.
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	postID, err := postIDQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.comments.Create(r.Context(), ident, postID, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/comment/"+strconv.FormatUint(uint64(comment.ID), 10))
	writeJSON(w, http.StatusCreated, comment)
}

// HandleUpdate edits a comment. Only the author may edit; anyone else,
// admins included, gets the same not-found as a missing comment, so the
// endpoint does not leak which comment ids exist.
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.comments.Update(r.Context(), ident, id, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

// HandleDelete removes a comment. Authors delete their own; admins
// delete anything.
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.comments.Delete(r.Context(), ident, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
