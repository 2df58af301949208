package categories

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
	"blog_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type CategoryService interface {
	Create(ctx context.Context, name string) (models.Category, error)
	Get(ctx context.Context, id string) (models.Category, error)
	List(ctx context.Context, search string, skip, take int) ([]models.Category, error)
	Update(ctx context.Context, id, name string) (models.Category, error)
	Delete(ctx context.Context, id string) error
}

type Request struct {
	Name string `json:"name" validate:"required,min=3,max=16,alphanum"`
}

func List(log *slog.Logger, svc CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.categories.List"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q := r.URL.Query()

		skip, errSkip := intParam(q.Get("skip"))
		take, errTake := intParam(q.Get("take"))
		if errSkip != nil || errTake != nil {
			resp.BadRequest(w, r, resp.CodeErrorFormat, "skip and take must be non-negative integers")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := svc.List(ctx, q.Get("search"), skip, take)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, list))
	}
}

func Get(log *slog.Logger, svc CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.categories.Get"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		pid, ok := request.PathID(r, "id")
		if !ok {
			resp.NotFound(w, r, resp.CodeCateNotFound, "Category not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cat, err := svc.Get(ctx, pid)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, cat))
	}
}

func Create(log *slog.Logger, validate *validator.Validate, svc CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.categories.Create"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cat, err := svc.Create(ctx, req.Name)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusCreated, resp.Data(http.StatusCreated, cat))
	}
}

func Update(log *slog.Logger, validate *validator.Validate, svc CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.categories.Update"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		pid, ok := request.PathID(r, "id")
		if !ok {
			resp.NotFound(w, r, resp.CodeCateNotFound, "Category not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		cat, err := svc.Update(ctx, pid, req.Name)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, cat))
	}
}

func Delete(log *slog.Logger, svc CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.categories.Delete"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		pid, ok := request.PathID(r, "id")
		if !ok {
			resp.NotFound(w, r, resp.CodeCateNotFound, "Category not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := svc.Delete(ctx, pid); err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}

func replyError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, blog.ErrCategoryNotFound):
		resp.NotFound(w, r, resp.CodeCateNotFound, "Category not found")
	case errors.Is(err, blog.ErrCategoryExists):
		resp.Conflict(w, r, resp.CodeCateNameIsExist, "Category name already exists")
	default:
		log.Error("request failed", sl.Err(err))
		resp.InternalServerError(w, r)
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}

	return n, nil
}
