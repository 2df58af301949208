package authn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blog_service/internal/lib/api/response"
	"blog_service/internal/lib/jwt"
	"blog_service/internal/lib/logger/sl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T, now func() time.Time) *jwt.Codec {
	t.Helper()

	var opts []jwt.Option
	if now != nil {
		opts = append(opts, jwt.WithClock(now))
	}

	c, err := jwt.New("test-secret", opts...)
	require.NoError(t, err)

	return c
}

func sign(t *testing.T, c *jwt.Codec, p jwt.Payload) string {
	t.Helper()

	tok, err := c.Sign(p, time.Hour)
	require.NoError(t, err)

	return tok
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var resp response.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	return resp
}

func identityHandler(got *Identity, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	codec := newCodec(t, nil)
	access := sign(t, codec, jwt.AccessPayload{UserID: "u1", UserEmail: "user@test.com", IsAdmin: true})
	refresh := sign(t, codec, jwt.RefreshPayload{UserID: "u1"})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid", "Bearer " + access, http.StatusOK},
		{"lowercase scheme", "bearer " + access, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + access, http.StatusUnauthorized},
		{"no token", "Bearer ", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"tampered", "Bearer " + access + "x", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got    Identity
				called bool
			)

			h := RequireAuth(sl.NewDiscardLogger(), codec)(identityHandler(&got, &called))

			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, Identity{UserID: "u1", UserEmail: "user@test.com", IsAdmin: true}, got)
				return
			}

			assert.False(t, called)
			assert.Equal(t, response.CodeUnauthorized, decode(t, rr).Code)
		})
	}
}

func TestRequireAuth_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	codec := newCodec(t, clock)

	access := sign(t, codec, jwt.AccessPayload{UserID: "u1"})
	now = now.Add(2 * time.Hour)

	var (
		got    Identity
		called bool
	)

	h := RequireAuth(sl.NewDiscardLogger(), codec)(identityHandler(&got, &called))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("no identity", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireAdmin(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/categories", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("not admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/categories", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u1"}))
		rr := httptest.NewRecorder()

		RequireAdmin(ok).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, response.CodeDontHavePermission, decode(t, rr).Code)
	})

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/categories", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u1", IsAdmin: true}))
		rr := httptest.NewRecorder()

		RequireAdmin(ok).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

// A self-signed token claiming isAdmin must not get past RequireAuth, so it
// never reaches RequireAdmin.
func TestAdminChain_ForgedToken(t *testing.T) {
	trusted := newCodec(t, nil)
	forger, err := jwt.New("attacker-secret")
	require.NoError(t, err)

	forged := sign(t, forger, jwt.AccessPayload{UserID: "u1", IsAdmin: true})

	called := false
	h := RequireAuth(sl.NewDiscardLogger(), trusted)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	req := httptest.NewRequest(http.MethodDelete, "/categories/1", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestOptionalAuth(t *testing.T) {
	codec := newCodec(t, nil)
	access := sign(t, codec, jwt.AccessPayload{UserID: "u1"})

	var (
		got    Identity
		called bool
	)

	h := OptionalAuth(codec)(identityHandler(&got, &called))

	req := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
	assert.Equal(t, "u1", got.UserID)

	called, got = false, Identity{}
	req = httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	req.Header.Set("Authorization", "Bearer junk")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
	assert.Empty(t, got.UserID)
}

func TestRequireEmailToken(t *testing.T) {
	now := time.Now()
	codec := newCodec(t, func() time.Time { return now })

	valid := sign(t, codec, jwt.EmailPayload{UserEmail: "user@test.com", Purpose: jwt.KindEmailVerification})
	reset := sign(t, codec, jwt.EmailPayload{UserEmail: "user@test.com", Purpose: jwt.KindPasswordReset})

	expiring, err := codec.Sign(jwt.EmailPayload{UserEmail: "user@test.com", Purpose: jwt.KindEmailVerification}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		query      string
		advance    time.Duration
		wantStatus int
		wantCode   int
	}{
		{"valid", "?token=" + valid, 0, http.StatusOK, 0},
		{"missing", "", 0, http.StatusNotFound, response.CodeEmailTokenNotFound},
		{"garbage", "?token=abc", 0, http.StatusBadRequest, response.CodeInvalidEmailToken},
		{"wrong purpose", "?token=" + reset, 0, http.StatusBadRequest, response.CodeInvalidEmailToken},
		{"expired", "?token=" + expiring, 2 * time.Minute, http.StatusBadRequest, response.CodeEmailTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := now
			now = now.Add(tt.advance)
			defer func() { now = saved }()

			h := RequireEmailToken(codec, jwt.KindEmailVerification)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/verify-email"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, decode(t, rr).Code)
			}
		})
	}
}
