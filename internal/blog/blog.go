// Package blog holds the category and post services.
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

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category name already exists")
	ErrPostNotFound     = errors.New("post not found")
)

const DefaultTake = 10

type CategoryStorage interface {
	SaveCategory(ctx context.Context, name string) (models.Category, error)
	Category(ctx context.Context, id string) (models.Category, error)
	Categories(ctx context.Context, q storage.CategoryQuery) ([]models.Category, error)
	UpdateCategory(ctx context.Context, id string, name string) error
	DeleteCategory(ctx context.Context, id string) error
}

type PostStorage interface {
	SavePost(ctx context.Context, p models.Post) (models.Post, error)
	Post(ctx context.Context, id string) (models.Post, error)
	Posts(ctx context.Context, q storage.PostQuery) ([]models.Post, int, error)
	UpdatePost(ctx context.Context, p models.Post) error
	DeletePost(ctx context.Context, id string, authorID string) error
}

type Categories struct {
	log     *slog.Logger
	storage CategoryStorage
}

func NewCategories(log *slog.Logger, storage CategoryStorage) *Categories {
	return &Categories{log: log, storage: storage}
}

func (c *Categories) Create(ctx context.Context, name string) (models.Category, error) {
	const op = "blog.Categories.Create"

	cat, err := c.storage.SaveCategory(ctx, name)
	if err != nil {
		return models.Category{}, c.translate(op, err)
	}

	c.log.Info("category created", slog.String("op", op), slog.String("id", cat.ID))

	return cat, nil
}

func (c *Categories) Get(ctx context.Context, id string) (models.Category, error) {
	const op = "blog.Categories.Get"

	cat, err := c.storage.Category(ctx, id)
	if err != nil {
		return models.Category{}, c.translate(op, err)
	}

	return cat, nil
}

// List returns categories whose name contains search. take <= 0 selects
// DefaultTake.
func (c *Categories) List(ctx context.Context, search string, skip, take int) ([]models.Category, error) {
	const op = "blog.Categories.List"

	if take <= 0 {
		take = DefaultTake
	}
	if skip < 0 {
		skip = 0
	}

	list, err := c.storage.Categories(ctx, storage.CategoryQuery{Search: search, Skip: skip, Take: take})
	if err != nil {
		return nil, c.translate(op, err)
	}

	return list, nil
}

func (c *Categories) Update(ctx context.Context, id, name string) (models.Category, error) {
	const op = "blog.Categories.Update"

	if err := c.storage.UpdateCategory(ctx, id, name); err != nil {
		return models.Category{}, c.translate(op, err)
	}

	return c.Get(ctx, id)
}

func (c *Categories) Delete(ctx context.Context, id string) error {
	const op = "blog.Categories.Delete"

	if err := c.storage.DeleteCategory(ctx, id); err != nil {
		return c.translate(op, err)
	}

	c.log.Info("category deleted", slog.String("op", op), slog.String("id", id))

	return nil
}

func (c *Categories) translate(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrCategoryNotFound):
		return fmt.Errorf("%s: %w", op, ErrCategoryNotFound)
	case errors.Is(err, storage.ErrCategoryExists):
		return fmt.Errorf("%s: %w", op, ErrCategoryExists)
	}

	c.log.Error("storage failure", slog.String("op", op), sl.Err(err))

	return fmt.Errorf("%s: %w", op, err)
}
