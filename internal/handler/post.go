package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/fancy-blog/internal/apperror"
	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/model"
	"github.com/sakif/fancy-blog/internal/service"
)

// PostHandler serves the post listing, CRUD, and the tag index.
type PostHandler struct {
	posts       *service.PostService
	validate    *validator.Validate
	maxAbstract int
	logger      *slog.Logger
}

func NewPostHandler(posts *service.PostService, maxAbstract int, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:       posts,
		validate:    newValidator(),
		maxAbstract: maxAbstract,
		logger:      logger,
	}
}

type createPostRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Content string `json:"content" validate:"required,min=1"`
	Tags    string `json:"tags" validate:"omitempty,tagchars"`
}

type updatePostRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content   *string `json:"content" validate:"omitempty,min=1"`
	Tags      *string `json:"tags" validate:"omitempty,tagchars"`
	Published *bool   `json:"published"`
}

// postSummary is a listing row: the content is cut down to an abstract.
type postSummary struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Published  bool      `json:"published"`
	Tags       []string  `json:"tags"`
	AuthorID   uint      `json:"authorId"`
	AuthorName string    `json:"authorName"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type postDetail struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Published  bool      `json:"published"`
	Tags       []string  `json:"tags"`
	AuthorID   uint      `json:"authorId"`
	AuthorName string    `json:"authorName"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func tagNames(tags []model.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

// abstract cuts content at a rune boundary, marking the cut with "...".
func abstract(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}

func (h *PostHandler) summaryOf(p *model.Post) postSummary {
	return postSummary{
		ID:         p.ID,
		Title:      p.Title,
		Abstract:   abstract(p.Content, h.maxAbstract),
		Published:  p.Published,
		Tags:       tagNames(p.Tags),
		AuthorID:   p.AuthorID,
		AuthorName: p.Author.Username,
		UpdatedAt:  p.UpdatedAt,
	}
}

func detailOf(p *model.Post) postDetail {
	return postDetail{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		Published:  p.Published,
		Tags:       tagNames(p.Tags),
		AuthorID:   p.AuthorID,
		AuthorName: p.Author.Username,
		UpdatedAt:  p.UpdatedAt,
	}
}

// uintQuery parses an optional unsigned integer query parameter.
func uintQuery(r *http.Request, name, message string) (uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperror.ValidationFailed(name, message)
	}
	return uint(v), nil
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, name, message string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperror.ValidationFailed(name, message)
	}
	return &t, nil
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "ID must be an integer")
	}
	return uint(v), nil
}

// HandleList returns a page of post abstracts, newest update first.
// Anonymous readers and regular users see published posts only; admins
// see everything.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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
	from, err := dateQuery(r, "from", "From must be a date in YYYY-MM-DD format")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := dateQuery(r, "to", "To must be a date in YYYY-MM-DD format")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ident, _ := auth.IdentityFromContext(r.Context())

	posts, err := h.posts.List(r.Context(), service.ListParams{
		Cursor:  cursor,
		Limit:   int(limit),
		Tags:    r.URL.Query().Get("tags"),
		From:    from,
		To:      to,
		IsAdmin: ident.IsAdmin,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	summaries := make([]postSummary, 0, len(posts))
	for i := range posts {
		summaries = append(summaries, h.summaryOf(&posts[i]))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleGet returns one post with its full content.
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, detailOf(post))
}

// HandleCreate publishes a new post owned by the calling admin.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.Create(r.Context(), ident.ID, req.Title, req.Content, req.Tags)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/post/"+strconv.FormatUint(uint64(post.ID), 10))
	writeJSON(w, http.StatusCreated, map[string]uint{"id": post.ID})
}

// HandleUpdate applies a partial edit and returns the updated post.
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.Update(r.Context(), id, service.PostUpdateParams{
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		Published: req.Published,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, detailOf(post))
}

// HandleDelete soft-deletes a post. Its comments stay in the store but
// become unreachable along with the post.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleTags lists every tag used by at least one published post with
// its usage count, most used first.
func (h *PostHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.posts.ListTags(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, counts)
}
