package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blog_service/internal/lib/jwt"
	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

type VerifyResult int

const (
	Verified VerifyResult = iota + 1
	AlreadyVerified
)

// VerifyEmail consumes an email verification token. Verifying an account
// twice is not an error; the second call reports AlreadyVerified.
func (a *Auth) VerifyEmail(ctx context.Context, token string) (VerifyResult, error) {
	const op = "auth.VerifyEmail"

	log := a.log.With(slog.String("op", op))

	payload, err := a.codec.VerifyEmail(token, jwt.KindEmailVerification)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Info("verification token expired")
			return 0, fmt.Errorf("%s: %w", op, ErrEmailTokenExpired)
		}

		log.Warn("invalid verification token", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidEmailToken)
	}

	user, err := a.usrProvider.User(ctx, payload.UserEmail)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return 0, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return AlreadyVerified, nil
	}

	if err := a.usrSaver.SetEmailVerified(ctx, user.ID); err != nil {
		log.Error("failed to set email verified", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.String("uid", user.ID))

	return Verified, nil
}

// ResendVerification mails a fresh verification link to an unverified user.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return fmt.Errorf("%s: %w", op, ErrEmailAlreadyVerified)
	}

	if err := a.allow(ctx, "resend:"+email); err != nil {
		log.Info("resend throttled", slog.String("uid", user.ID))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sendVerification(ctx, user.Email); err != nil {
		log.Error("failed to send verification email", sl.Err(err))
		a.release(ctx, "resend:"+email)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("verification email resent", slog.String("uid", user.ID))

	return nil
}

// ForgotPassword issues a password reset token, stores it on the user as
// the only token that may be redeemed and mails it.
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.allow(ctx, "forgot:"+email); err != nil {
		log.Info("forgot password throttled", slog.String("uid", user.ID))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.issueReset(ctx, log, user); err != nil {
		a.release(ctx, "forgot:"+email)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset email sent", slog.String("uid", user.ID))

	return nil
}

func (a *Auth) issueReset(ctx context.Context, log *slog.Logger, user models.User) error {
	token, err := a.codec.Sign(jwt.EmailPayload{UserEmail: user.Email, Purpose: jwt.KindPasswordReset}, a.ttl.Reset)
	if err != nil {
		log.Error("failed to sign reset token", sl.Err(err))
		return err
	}

	if err := a.usrSaver.SetForgotToken(ctx, user.ID, token); err != nil {
		log.Error("failed to store reset token", sl.Err(err))
		return err
	}

	if err := a.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		log.Error("failed to send reset email", sl.Err(err))
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}

	return nil
}

// ResetPassword redeems a reset token for email. The token must be the one
// last issued to the user; redeeming it clears it and signs the user out of
// every session.
func (a *Auth) ResetPassword(ctx context.Context, email, password, token string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	payload, err := a.codec.VerifyEmail(token, jwt.KindPasswordReset)
	if err != nil {
		log.Warn("invalid reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}

	if payload.UserEmail != email {
		log.Warn("reset token issued for another account")
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := a.hasher.Hash(ctx, password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.ResetPassword(ctx, user.ID, passHash, token); err != nil {
		if errors.Is(err, storage.ErrForgotTokenMismatch) {
			log.Warn("reset token already used or replaced", slog.String("uid", user.ID))
			return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
		}

		log.Error("failed to reset password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset", slog.String("uid", user.ID))

	return nil
}

func (a *Auth) sendVerification(ctx context.Context, email string) error {
	token, err := a.codec.Sign(jwt.EmailPayload{UserEmail: email, Purpose: jwt.KindEmailVerification}, a.ttl.Verification)
	if err != nil {
		return err
	}

	if err := a.mailer.SendVerification(ctx, email, token); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}

	return nil
}

// allow reports ErrTooManyRequests while key is cooling down. A throttle
// outage does not block mail.
func (a *Auth) allow(ctx context.Context, key string) error {
	if a.throttle == nil || a.ttl.Cooldown <= 0 {
		return nil
	}

	ok, _, err := a.throttle.Allow(ctx, key, a.ttl.Cooldown)
	if err != nil {
		a.log.Warn("throttle unavailable", slog.String("op", "auth.allow"), sl.Err(err))
		return nil
	}
	if !ok {
		return ErrTooManyRequests
	}

	return nil
}

// release gives back the cooldown slot taken by allow when no mail went out.
func (a *Auth) release(ctx context.Context, key string) {
	if a.throttle == nil || a.ttl.Cooldown <= 0 {
		return
	}

	if err := a.throttle.Reset(ctx, key); err != nil {
		a.log.Warn("failed to release cooldown", slog.String("op", "auth.release"), sl.Err(err))
	}
}
