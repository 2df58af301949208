package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

func (a *Auth) Profile(ctx context.Context, uid string) (models.User, error) {
	const op = "auth.Profile"

	user, err := a.usrProvider.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateProfile applies the non-nil fields of p and returns the result.
func (a *Auth) UpdateProfile(ctx context.Context, uid string, p models.Profile) (models.User, error) {
	const op = "auth.UpdateProfile"

	log := a.log.With(slog.String("op", op))

	if err := a.usrSaver.UpdateProfile(ctx, uid, p); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to update profile", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return a.Profile(ctx, uid)
}

// ChangePassword replaces the password after checking the current one.
// Existing refresh tokens of the user are revoked.
func (a *Auth) ChangePassword(ctx context.Context, uid, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Verify(ctx, oldPassword, user.PassHash) {
		log.Info("incorrect password", slog.String("uid", uid))
		return fmt.Errorf("%s: %w", op, ErrIncorrectPassword)
	}

	passHash, err := a.hasher.Hash(ctx, newPassword)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdatePassword(ctx, uid, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.String("uid", uid))

	return nil
}
