package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blog_service/internal/lib/hash"
	"blog_service/internal/lib/jwt"
	"blog_service/internal/lib/logger/sl"
	"blog_service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "user@test.com"
	testPassword = "Passw0rd!"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeMailer struct {
	mu           sync.Mutex
	err          error
	verification map[string]string
	reset        map[string]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		verification: make(map[string]string),
		reset:        make(map[string]string),
	}
}

func (m *fakeMailer) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.verification[email] = token
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reset[email] = token
	return nil
}

type fakeThrottle struct {
	seen map[string]bool
	err  error
}

func (t *fakeThrottle) Allow(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	if t.err != nil {
		return false, 0, t.err
	}
	if t.seen[key] {
		return false, ttl, nil
	}
	t.seen[key] = true
	return true, 0, nil
}

func (t *fakeThrottle) Reset(_ context.Context, key string) error {
	delete(t.seen, key)
	return t.err
}

type fakeRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *fakeRecorder) AuthEvent(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[op+":"+outcome]++
}

type suite struct {
	auth   *Auth
	store  *memory.Storage
	mailer *fakeMailer
	clock  *fakeClock
	codec  *jwt.Codec
}

func newSuite(t *testing.T, opts ...Option) *suite {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	codec, err := jwt.New("test-secret", jwt.WithClock(clock.Now))
	require.NoError(t, err)

	store := memory.New()
	mailer := newFakeMailer()

	opts = append([]Option{WithClock(clock.Now)}, opts...)

	a := New(
		sl.NewDiscardLogger(),
		store,
		store,
		store,
		codec,
		hash.New(bcrypt.MinCost, 4),
		mailer,
		TTLs{
			Access:       2 * time.Hour,
			Refresh:      7 * 24 * time.Hour,
			Verification: 24 * time.Hour,
			Reset:        24 * time.Hour,
			Cooldown:     time.Minute,
		},
		opts...,
	)

	return &suite{auth: a, store: store, mailer: mailer, clock: clock, codec: codec}
}

// verifiedUser registers testEmail and consumes the mailed token.
func (s *suite) verifiedUser(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	u, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	res, err := s.auth.VerifyEmail(ctx, s.mailer.verification[testEmail])
	require.NoError(t, err)
	require.Equal(t, Verified, res)

	return u.ID
}

func TestRegisterNewUser(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	u, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, testEmail, u.Email)
	assert.False(t, u.IsVerified)
	assert.NotEqual(t, []byte(testPassword), u.PassHash)
	assert.NotEmpty(t, s.mailer.verification[testEmail])

	_, err = s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterNewUser_DeliveryFailedKeepsUser(t *testing.T) {
	s := newSuite(t)
	s.mailer.err = errors.New("smtp down")
	ctx := context.Background()

	u, err := s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)
	assert.NotEmpty(t, u.ID)

	_, err = s.store.User(ctx, testEmail)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	_, err := s.auth.Login(ctx, testEmail, testPassword, "127.0.0.1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.auth.RegisterNewUser(ctx, testEmail, testPassword)
	require.NoError(t, err)

	for _, pw := range []string{testPassword, "wrong"} {
		_, err = s.auth.Login(ctx, testEmail, pw, "127.0.0.1")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	}

	_, err = s.auth.VerifyEmail(ctx, s.mailer.verification[testEmail])
	require.NoError(t, err)

	_, err = s.auth.Login(ctx, testEmail, "Wrong0rd!", "127.0.0.1")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "127.0.0.1")
	require.NoError(t, err)

	access, err := s.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, access.UserEmail)
	assert.False(t, access.IsAdmin)

	rt, err := s.store.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, access.UserID, rt.UserID)
	assert.Equal(t, "127.0.0.1", rt.IPAddress)
	assert.Equal(t, s.clock.Now().Add(7*24*time.Hour), rt.ExpiresAt)
}

func TestLogin_AdminClaim(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	uid := s.verifiedUser(t)
	require.NoError(t, s.store.SetAdmin(ctx, uid, true))

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	access, err := s.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, access.IsAdmin)
}

func TestRefresh_SingleUse(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "10.0.0.1")
	require.NoError(t, err)

	next, err := s.auth.Refresh(ctx, pair.RefreshToken, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = s.auth.Refresh(ctx, pair.RefreshToken, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	rt, err := s.store.RefreshToken(ctx, next.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", rt.IPAddress)
}

func TestRefresh_Concurrent(t *testing.T) {
	rec := &fakeRecorder{events: make(map[string]int)}
	s := newSuite(t, WithRecorder(rec))
	ctx := context.Background()
	s.verifiedUser(t)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	const callers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.auth.Refresh(ctx, pair.RefreshToken, "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidRefreshToken):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, invalid)
	assert.Equal(t, 1, rec.events["auth.Refresh:ok"])
}

func TestRefresh_RejectsOtherKinds(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	_, err = s.auth.Refresh(ctx, pair.AccessToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = s.auth.Refresh(ctx, "not-a-token", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	s.clock.Advance(3 * time.Hour)

	_, err = s.auth.Refresh(ctx, pair.AccessToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.NotErrorIs(t, err, ErrRefreshTokenExpired)

	_, err = s.auth.Refresh(ctx, pair.RefreshToken, "")
	assert.NoError(t, err, "refresh row must survive an expired access token sent in its place")
}

func TestRefresh_Expired(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	s.clock.Advance(7*24*time.Hour + time.Second)

	_, err = s.auth.Refresh(ctx, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	_, err = s.store.RefreshToken(ctx, pair.RefreshToken)
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	pair, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	require.NoError(t, s.auth.Logout(ctx, pair.RefreshToken))
	require.NoError(t, s.auth.Logout(ctx, pair.RefreshToken))

	_, err = s.auth.Refresh(ctx, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestCleanupExpired(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.verifiedUser(t)

	_, err := s.auth.Login(ctx, testEmail, testPassword, "")
	require.NoError(t, err)

	n, err := s.auth.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	s.clock.Advance(8 * 24 * time.Hour)

	n, err = s.auth.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunCleanup_NonPositiveIntervalReturns(t *testing.T) {
	s := newSuite(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, interval := range []time.Duration{0, -time.Second} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.auth.RunCleanup(ctx, interval)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("RunCleanup(%v) did not return", interval)
		}
	}
}
