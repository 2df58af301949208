package storage

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExists   = errors.New("refresh token already exists")
	ErrForgotTokenMismatch  = errors.New("forgot token does not match")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryExists       = errors.New("category already exists")
	ErrPostNotFound         = errors.New("post not found")
)
