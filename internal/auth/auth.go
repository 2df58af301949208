// Package auth implements sign-up, sign-in and the refresh token lifecycle,
// plus the email token flows for verification and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blog_service/internal/lib/hash"
	"blog_service/internal/lib/jwt"
	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrEmailNotVerified     = errors.New("email is not verified")
	ErrIncorrectPassword    = errors.New("incorrect password")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrInvalidEmailToken    = errors.New("invalid email token")
	ErrEmailTokenExpired    = errors.New("email token expired")
	ErrEmailAlreadyVerified = errors.New("email has been verified")
	ErrInvalidResetToken    = errors.New("invalid reset password token")
	ErrEmailDeliveryFailed  = errors.New("failed to send email")
	ErrTooManyRequests      = errors.New("too many requests")
)

type UserSaver interface {
	SaveUser(ctx context.Context, email string, passHash []byte) (models.User, error)
	SetEmailVerified(ctx context.Context, uid string) error
	SetForgotToken(ctx context.Context, uid string, token string) error
	ResetPassword(ctx context.Context, uid string, passHash []byte, forgotToken string) error
	UpdatePassword(ctx context.Context, uid string, passHash []byte) error
	UpdateProfile(ctx context.Context, uid string, p models.Profile) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type TokenStore interface {
	SaveRefreshToken(ctx context.Context, rt models.RefreshToken) error
	RefreshToken(ctx context.Context, token string) (models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldToken string, next models.RefreshToken, now time.Time) error
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Mailer delivers email tokens to their owners.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Throttle grants at most one action per key per ttl. Reset gives a slot
// back before its ttl runs out.
type Throttle interface {
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// Recorder counts auth outcomes. outcome is "ok" or a short error label.
type Recorder interface {
	AuthEvent(op, outcome string)
}

type TTLs struct {
	Access       time.Duration
	Refresh      time.Duration
	Verification time.Duration
	Reset        time.Duration
	// Cooldown spaces out resend-verification and forgot-password mails
	// for the same address.
	Cooldown time.Duration
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	tokens      TokenStore
	codec       *jwt.Codec
	hasher      *hash.Hasher
	mailer      Mailer
	throttle    Throttle
	recorder    Recorder
	ttl         TTLs
	now         func() time.Time
}

type Option func(*Auth)

// WithClock sets the time source for stored refresh token expiry. It should
// agree with the clock of the codec.
func WithClock(now func() time.Time) Option {
	return func(a *Auth) {
		a.now = now
	}
}

func WithThrottle(t Throttle) Option {
	return func(a *Auth) {
		a.throttle = t
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Auth) {
		a.recorder = r
	}
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	tokens TokenStore,
	codec *jwt.Codec,
	hasher *hash.Hasher,
	mailer Mailer,
	ttl TTLs,
	opts ...Option,
) *Auth {
	a := &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		tokens:      tokens,
		codec:       codec,
		hasher:      hasher,
		mailer:      mailer,
		ttl:         ttl,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// RegisterNewUser creates an unverified user and mails a verification link.
// If the mail cannot be delivered the user is kept and ErrEmailDeliveryFailed
// is returned along with it, so the client can ask for a resend.
func (a *Auth) RegisterNewUser(ctx context.Context, email, password string) (models.User, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(slog.String("op", op))

	log.Info("registering new user")

	passHash, err := a.hasher.Hash(ctx, password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrSaver.SaveUser(ctx, email, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sendVerification(ctx, user.Email); err != nil {
		log.Error("failed to send verification email", slog.String("uid", user.ID), sl.Err(err))
		return user, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("uid", user.ID))

	return user, nil
}

// Login checks the credentials of a verified user and issues a token pair.
// The refresh token is stored together with the client address.
func (a *Auth) Login(ctx context.Context, email, password, clientIP string) (TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			a.record(op, "user_not_found")
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsVerified {
		log.Info("email is not verified", slog.String("uid", user.ID))
		a.record(op, "email_not_verified")
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}

	if !a.hasher.Verify(ctx, password, user.PassHash) {
		log.Info("incorrect password", slog.String("uid", user.ID))
		a.record(op, "incorrect_password")
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrIncorrectPassword)
	}

	pair, rt, err := a.issuePair(user, clientIP)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.tokens.SaveRefreshToken(ctx, rt); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("uid", user.ID))
	a.record(op, "ok")

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// carry a valid signature and still be stored; it is replaced by the new one
// in a single store operation, so it can be used only once.
func (a *Auth) Refresh(ctx context.Context, refreshToken, clientIP string) (TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	payload, err := a.codec.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Info("refresh token expired")
			a.dropRefreshToken(ctx, log, refreshToken)
			a.record(op, "expired")
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenExpired)
		}

		log.Warn("invalid refresh token", sl.Err(err))
		a.record(op, "invalid")
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	rt, err := a.tokens.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Warn("refresh token not found")
			a.record(op, "invalid")
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}

		log.Error("failed to get refresh token", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if rt.UserID != payload.UserID {
		log.Warn("refresh token owner mismatch")
		a.record(op, "invalid")
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	now := a.now()

	if rt.IsExpired(now) {
		log.Info("stored refresh token expired", slog.String("uid", rt.UserID))
		a.dropRefreshToken(ctx, log, refreshToken)
		a.record(op, "expired")
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenExpired)
	}

	user, err := a.usrProvider.UserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("refresh token owner not found", slog.String("uid", rt.UserID))
			a.dropRefreshToken(ctx, log, refreshToken)
			a.record(op, "invalid")
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}

		log.Error("failed to load user", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, next, err := a.issuePair(user, clientIP)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.tokens.RotateRefreshToken(ctx, refreshToken, next, now); err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Warn("refresh token already rotated", slog.String("uid", user.ID))
			a.record(op, "invalid")
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}

		log.Error("failed to rotate refresh token", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.String("uid", user.ID))
	a.record(op, "ok")

	return pair, nil
}

// Logout forgets the refresh token. Unknown tokens are not an error.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if err := a.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
		log.Error("failed to delete refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful")

	return nil
}

// CleanupExpired removes refresh tokens that are past their expiry.
func (a *Auth) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "auth.CleanupExpired"

	n, err := a.tokens.DeleteExpiredRefreshTokens(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (a *Auth) RunCleanup(ctx context.Context, interval time.Duration) {
	const op = "auth.RunCleanup"

	log := a.log.With(slog.String("op", op))

	if interval <= 0 {
		log.Warn("refresh token cleanup disabled", slog.Duration("interval", interval))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.CleanupExpired(ctx)
			if err != nil {
				log.Error("failed to delete expired refresh tokens", sl.Err(err))
				continue
			}
			if n > 0 {
				log.Info("expired refresh tokens deleted", slog.Int64("count", n))
			}
		}
	}
}

func (a *Auth) issuePair(user models.User, clientIP string) (TokenPair, models.RefreshToken, error) {
	access, err := a.codec.Sign(jwt.AccessPayload{
		UserID:    user.ID,
		UserEmail: user.Email,
		IsAdmin:   user.IsAdmin,
	}, a.ttl.Access)
	if err != nil {
		return TokenPair{}, models.RefreshToken{}, err
	}

	refresh, err := a.codec.Sign(jwt.RefreshPayload{UserID: user.ID}, a.ttl.Refresh)
	if err != nil {
		return TokenPair{}, models.RefreshToken{}, err
	}

	rt := models.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: a.now().Add(a.ttl.Refresh),
		IPAddress: clientIP,
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, rt, nil
}

func (a *Auth) dropRefreshToken(ctx context.Context, log *slog.Logger, token string) {
	if err := a.tokens.DeleteRefreshToken(ctx, token); err != nil {
		log.Error("failed to delete stale refresh token", sl.Err(err))
	}
}

func (a *Auth) record(op, outcome string) {
	if a.recorder != nil {
		a.recorder.AuthEvent(op, outcome)
	}
}
