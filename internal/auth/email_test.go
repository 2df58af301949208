package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"blog_service/internal/lib/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmail(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	_, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	token := s.mailer.verification[testEmail]

	res, err := s.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Verified, res)

	res, err = s.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, AlreadyVerified, res)
}

func TestVerifyEmail_Errors(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	_, err := s.auth.VerifyEmail(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidEmailToken)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	_, err = s.auth.VerifyEmail(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidEmailToken)

	ghost, err := s.codec.Sign(jwt.EmailPayload{UserEmail: "ghost@test.com", Purpose: jwt.KindEmailVerification}, time.Hour)
	require.NoError(t, err)

	_, err = s.auth.VerifyEmail(ctx, ghost)
	assert.ErrorIs(t, err, ErrUserNotFound)

	reset, err := s.codec.Sign(jwt.EmailPayload{UserEmail: testEmail, Purpose: jwt.KindPasswordReset}, time.Hour)
	require.NoError(t, err)

	_, err = s.auth.VerifyEmail(ctx, reset)
	assert.ErrorIs(t, err, ErrInvalidEmailToken)
}

func TestVerifyEmail_Expired(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	_, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	s.clock.Advance(25 * time.Hour)

	_, err = s.auth.VerifyEmail(ctx, s.mailer.verification[testEmail])
	assert.ErrorIs(t, err, ErrEmailTokenExpired)
}

func TestResendVerification(t *testing.T) {
	s := newSuite(t, WithThrottle(&fakeThrottle{seen: make(map[string]bool)}))
	ctx := context.Background()

	err := s.auth.ResendVerification(ctx, testEmail)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)
	first := s.mailer.verification[testEmail]

	s.clock.Advance(time.Second)

	require.NoError(t, s.auth.ResendVerification(ctx, testEmail))
	assert.NotEqual(t, first, s.mailer.verification[testEmail])

	err = s.auth.ResendVerification(ctx, testEmail)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	_, err = s.auth.VerifyEmail(ctx, first)
	require.NoError(t, err)

	err = s.auth.ResendVerification(ctx, testEmail)
	assert.ErrorIs(t, err, ErrEmailAlreadyVerified)
}

func TestResendVerification_ThrottleDownStillSends(t *testing.T) {
	s := newSuite(t, WithThrottle(&fakeThrottle{err: errors.New("redis down")}))
	ctx := context.Background()

	_, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	assert.NoError(t, s.auth.ResendVerification(ctx, testEmail))
}

func TestResendVerification_DeliveryFailed(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	_, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	s.mailer.err = errors.New("queue closed")

	err = s.auth.ResendVerification(ctx, testEmail)
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)
}

func TestResendVerification_FailedDeliveryFreesCooldown(t *testing.T) {
	s := newSuite(t, WithThrottle(&fakeThrottle{seen: map[string]bool{}}))
	ctx := context.Background()

	_, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	s.mailer.err = errors.New("smtp down")
	require.ErrorIs(t, s.auth.ResendVerification(ctx, testEmail), ErrEmailDeliveryFailed)

	s.mailer.err = nil
	require.NoError(t, s.auth.ResendVerification(ctx, testEmail))

	assert.ErrorIs(t, s.auth.ResendVerification(ctx, testEmail), ErrTooManyRequests)
}

func TestForgotPassword_FailedDeliveryFreesCooldown(t *testing.T) {
	s := newSuite(t, WithThrottle(&fakeThrottle{seen: map[string]bool{}}))
	ctx := context.Background()
	s.verifiedUser(t)

	s.mailer.err = errors.New("smtp down")
	require.ErrorIs(t, s.auth.ForgotPassword(ctx, testEmail), ErrEmailDeliveryFailed)

	s.mailer.err = nil
	require.NoError(t, s.auth.ForgotPassword(ctx, testEmail))
	assert.NotEmpty(t, s.mailer.reset[testEmail])

	assert.ErrorIs(t, s.auth.ForgotPassword(ctx, testEmail), ErrTooManyRequests)
}

func TestForgotAndResetPassword(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.auth.ForgotPassword(ctx, "ghost@test.com"), ErrUserNotFound)

	require.NoError(t, s.auth.ForgotPassword(ctx, testEmail))
	token := s.mailer.reset[testEmail]
	require.NotEmpty(t, token)

	err = s.auth.ResetPassword(ctx, "other@test.com", "N3wPass!", token)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	require.NoError(t, s.auth.ResetPassword(ctx, testEmail, "N3wPass!", token))

	err = s.auth.ResetPassword(ctx, testEmail, "An0ther!", token)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	_, err = s.auth.Refresh(ctx, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = s.auth.Login(ctx, testEmail, testPassword, "")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = s.auth.Login(ctx, testEmail, "N3wPass!", "")
	assert.NoError(t, err)
}

func TestResetPassword_OnlyLatestTokenCounts(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	require.NoError(t, s.auth.ForgotPassword(ctx, testEmail))
	first := s.mailer.reset[testEmail]

	s.clock.Advance(time.Second)
	require.NoError(t, s.auth.ForgotPassword(ctx, testEmail))

	err := s.auth.ResetPassword(ctx, testEmail, "N3wPass!", first)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_RejectsVerificationToken(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	_, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	err = s.auth.ResetPassword(ctx, testEmail, "N3wPass!", s.mailer.verification[testEmail])
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}
