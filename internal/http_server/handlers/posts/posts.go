package posts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"blog_service/internal/blog"
	"blog_service/internal/lib/api/request"
	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/middleware/authn"
	"blog_service/internal/models"
	"blog_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type PostService interface {
	ListPublic(ctx context.Context, q storage.PostQuery) (blog.PostPage, error)
	ListByAuthor(ctx context.Context, authorID string, q storage.PostQuery) (blog.PostPage, error)
	Get(ctx context.Context, id, viewerID string) (models.Post, error)
	Create(ctx context.Context, authorID string, d blog.PostDraft) (models.Post, error)
	Update(ctx context.Context, id, authorID string, d blog.PostDraft) (models.Post, error)
	Delete(ctx context.Context, id, authorID string) error
}

type Request struct {
	Title      string  `json:"title" validate:"required,max=255"`
	Content    string  `json:"content" validate:"required"`
	Status     string  `json:"status" validate:"omitempty,oneof=PUBLIC PRIVATE DRAFT"`
	CategoryID *string `json:"categoryId" validate:"omitempty,uuid"`
}

func (r Request) draft() blog.PostDraft {
	return blog.PostDraft{
		Title:      r.Title,
		Content:    r.Content,
		Status:     models.PostStatus(r.Status),
		CategoryID: r.CategoryID,
	}
}

// ListQuery holds the query string of the listing endpoints.
type ListQuery struct {
	AuthorID   string `json:"authorId" validate:"omitempty,uuid"`
	CategoryID string `json:"categoryId" validate:"omitempty,uuid"`
	SearchTerm string `json:"searchTerm" validate:"max=100"`
	Skip       int    `json:"skip" validate:"gte=0"`
	Take       int    `json:"take" validate:"gte=0,lte=100"`
	SortBy     string `json:"sortBy" validate:"omitempty,oneof=createdAt title"`
	SortOrder  string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

func (q ListQuery) toStorage() storage.PostQuery {
	return storage.PostQuery{
		AuthorID:   q.AuthorID,
		CategoryID: q.CategoryID,
		SearchTerm: q.SearchTerm,
		Skip:       q.Skip,
		Take:       q.Take,
		SortBy:     storage.PostSortField(q.SortBy),
		SortOrder:  storage.SortOrder(q.SortOrder),
	}
}

func List(log *slog.Logger, validate *validator.Validate, svc PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.List"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q, ok := parseListQuery(w, r, log, validate)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		page, err := svc.ListPublic(ctx, q.toStorage())
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, page))
	}
}

func Mine(log *slog.Logger, validate *validator.Validate, svc PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.Mine"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		q, ok := parseListQuery(w, r, log, validate)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		page, err := svc.ListByAuthor(ctx, id.UserID, q.toStorage())
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, page))
	}
}

// Get serves public posts to anyone and non-public ones to their author.
func Get(log *slog.Logger, svc PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.Get"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, _ := authn.IdentityFromContext(r.Context())

		pid, ok := request.PathID(r, "id")
		if !ok {
			resp.NotFound(w, r, resp.CodePostNotFound, "Post not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		post, err := svc.Get(ctx, pid, id.UserID)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, post))
	}
}

func Create(log *slog.Logger, validate *validator.Validate, svc PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.Create"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		post, err := svc.Create(ctx, id.UserID, req.draft())
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusCreated, resp.Data(http.StatusCreated, post))
	}
}

func Update(log *slog.Logger, validate *validator.Validate, svc PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.Update"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		pid, ok := request.PathID(r, "id")
		if !ok {
			resp.NotFound(w, r, resp.CodePostNotFound, "Post not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		post, err := svc.Update(ctx, pid, id.UserID, req.draft())
		if err != nil {
			if errors.Is(err, blog.ErrPostNotFound) {
				resp.NotFound(w, r, resp.CodePostNotFound, "Post not found")
				return
			}
			if errors.Is(err, blog.ErrCategoryNotFound) {
				replyError(w, r, log, err)
				return
			}

			log.Error("failed to update post", sl.Err(err))
			resp.Reply(w, r, http.StatusInternalServerError, resp.Error(resp.CodeUpdatePostError, "Failed to update post"))
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, post))
	}
}

func Delete(log *slog.Logger, svc PostService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.Delete"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		pid, ok := request.PathID(r, "id")
		if !ok {
			resp.NotFound(w, r, resp.CodePostNotFound, "Post not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := svc.Delete(ctx, pid, id.UserID); err != nil {
			if errors.Is(err, blog.ErrPostNotFound) {
				resp.NotFound(w, r, resp.CodePostNotFound, "Post not found")
				return
			}

			log.Error("failed to delete post", sl.Err(err))
			resp.Reply(w, r, http.StatusInternalServerError, resp.Error(resp.CodeDeletePostError, "Failed to delete post"))
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}

func parseListQuery(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate) (ListQuery, bool) {
	v := r.URL.Query()

	q := ListQuery{
		AuthorID:   v.Get("authorId"),
		CategoryID: v.Get("categoryId"),
		SearchTerm: v.Get("searchTerm"),
		SortBy:     v.Get("sortBy"),
		SortOrder:  v.Get("sortOrder"),
	}

	for name, dst := range map[string]*int{"skip": &q.Skip, "take": &q.Take} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}

		n, err := strconv.Atoi(raw)
		if err != nil {
			resp.BadRequest(w, r, resp.CodeErrorFormat, name+" must be an integer")
			return ListQuery{}, false
		}
		*dst = n
	}

	if !request.Validate(w, r, log, validate, q) {
		return ListQuery{}, false
	}

	return q, true
}

func replyError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, blog.ErrPostNotFound):
		resp.NotFound(w, r, resp.CodePostNotFound, "Post not found")
	case errors.Is(err, blog.ErrCategoryNotFound):
		resp.NotFound(w, r, resp.CodeCateNotFound, "Category not found")
	default:
		log.Error("request failed", sl.Err(err))
		resp.InternalServerError(w, r)
	}
}
