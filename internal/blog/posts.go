package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

type Pagination struct {
	TotalPosts  int  `json:"totalPosts"`
	TotalPages  int  `json:"totalPages"`
	Page        int  `json:"page"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type PostPage struct {
	Posts      []models.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

// PostDraft is the author-controlled part of a post.
type PostDraft struct {
	Title      string
	Content    string
	Status     models.PostStatus
	CategoryID *string
}

type Posts struct {
	log     *slog.Logger
	storage PostStorage
}

func NewPosts(log *slog.Logger, storage PostStorage) *Posts {
	return &Posts{log: log, storage: storage}
}

// ListPublic returns a page of PUBLIC posts.
func (p *Posts) ListPublic(ctx context.Context, q storage.PostQuery) (PostPage, error) {
	q.Status = string(models.PostPublic)
	return p.list(ctx, "blog.Posts.ListPublic", q)
}

// ListByAuthor returns a page of every post of authorID regardless of status.
func (p *Posts) ListByAuthor(ctx context.Context, authorID string, q storage.PostQuery) (PostPage, error) {
	q.AuthorID = authorID
	q.Status = ""
	return p.list(ctx, "blog.Posts.ListByAuthor", q)
}

func (p *Posts) list(ctx context.Context, op string, q storage.PostQuery) (PostPage, error) {
	if q.Take <= 0 {
		q.Take = DefaultTake
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.SortBy == "" {
		q.SortBy = storage.SortByCreatedAt
	}
	if q.SortOrder == "" {
		q.SortOrder = storage.SortDesc
	}

	posts, total, err := p.storage.Posts(ctx, q)
	if err != nil {
		return PostPage{}, p.translate(op, err)
	}

	return PostPage{
		Posts:      posts,
		Pagination: paginate(total, q.Skip, q.Take),
	}, nil
}

// Get returns a post. Non-public posts are visible to their author only.
func (p *Posts) Get(ctx context.Context, id, viewerID string) (models.Post, error) {
	const op = "blog.Posts.Get"

	post, err := p.storage.Post(ctx, id)
	if err != nil {
		return models.Post{}, p.translate(op, err)
	}

	if post.Status != models.PostPublic && post.AuthorID != viewerID {
		return models.Post{}, fmt.Errorf("%s: %w", op, ErrPostNotFound)
	}

	return post, nil
}

func (p *Posts) Create(ctx context.Context, authorID string, d PostDraft) (models.Post, error) {
	const op = "blog.Posts.Create"

	if d.Status == "" {
		d.Status = models.PostPublic
	}

	post, err := p.storage.SavePost(ctx, models.Post{
		Title:      d.Title,
		Content:    d.Content,
		Status:     d.Status,
		AuthorID:   authorID,
		CategoryID: d.CategoryID,
	})
	if err != nil {
		return models.Post{}, p.translate(op, err)
	}

	p.log.Info("post created", slog.String("op", op), slog.String("id", post.ID))

	return post, nil
}

func (p *Posts) Update(ctx context.Context, id, authorID string, d PostDraft) (models.Post, error) {
	const op = "blog.Posts.Update"

	if d.Status == "" {
		d.Status = models.PostPublic
	}

	err := p.storage.UpdatePost(ctx, models.Post{
		ID:         id,
		Title:      d.Title,
		Content:    d.Content,
		Status:     d.Status,
		AuthorID:   authorID,
		CategoryID: d.CategoryID,
	})
	if err != nil {
		return models.Post{}, p.translate(op, err)
	}

	return p.Get(ctx, id, authorID)
}

func (p *Posts) Delete(ctx context.Context, id, authorID string) error {
	const op = "blog.Posts.Delete"

	if err := p.storage.DeletePost(ctx, id, authorID); err != nil {
		return p.translate(op, err)
	}

	p.log.Info("post deleted", slog.String("op", op), slog.String("id", id))

	return nil
}

func (p *Posts) translate(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrPostNotFound):
		return fmt.Errorf("%s: %w", op, ErrPostNotFound)
	case errors.Is(err, storage.ErrCategoryNotFound):
		return fmt.Errorf("%s: %w", op, ErrCategoryNotFound)
	}

	p.log.Error("storage failure", slog.String("op", op), sl.Err(err))

	return fmt.Errorf("%s: %w", op, err)
}

func paginate(total, skip, take int) Pagination {
	pages := (total + take - 1) / take
	page := skip/take + 1

	return Pagination{
		TotalPosts:  total,
		TotalPages:  pages,
		Page:        page,
		HasNextPage: skip+take < total,
		HasPrevPage: skip > 0,
	}
}
