// Package authn gates routes on verified tokens.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"blog_service/internal/lib/api/response"
	"blog_service/internal/lib/jwt"

	"github.com/go-chi/chi/middleware"
)

type ctxKey struct{}

// Identity is the verified access token payload of the caller.
type Identity struct {
	UserID    string
	UserEmail string
	IsAdmin   bool
}

type AccessVerifier interface {
	VerifyAccess(token string) (jwt.AccessPayload, error)
}

type EmailVerifier interface {
	VerifyEmail(token string, purpose jwt.Kind) (jwt.EmailPayload, error)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid access token in the
// Authorization header and stores the caller Identity in the context.
func RequireAuth(log *slog.Logger, v AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				response.Unauthorized(w, r, response.CodeUnauthorized, "Unauthorized")
				return
			}

			p, err := v.VerifyAccess(token)
			if err != nil {
				log.Debug("access token rejected",
					slog.String("op", "authn.RequireAuth"),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Bool("expired", errors.Is(err, jwt.ErrTokenExpired)),
				)
				response.Unauthorized(w, r, response.CodeUnauthorized, "Unauthorized")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID:    p.UserID,
				UserEmail: p.UserEmail,
				IsAdmin:   p.IsAdmin,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth behaves like RequireAuth when a valid access token is sent
// and lets the request through anonymously otherwise.
func OptionalAuth(v AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if p, err := v.VerifyAccess(token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), Identity{
						UserID:    p.UserID,
						UserEmail: p.UserEmail,
						IsAdmin:   p.IsAdmin,
					}))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after RequireAuth. It trusts only the Identity
// placed in the context by RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, r, response.CodeUnauthorized, "Unauthorized")
			return
		}

		if !id.IsAdmin {
			response.Forbidden(w, r, response.CodeDontHavePermission, "You don't have permission")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireEmailToken checks the "token" query parameter of email links
// before the handler runs.
func RequireEmailToken(v EmailVerifier, purpose jwt.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				response.NotFound(w, r, response.CodeEmailTokenNotFound, "Email token not found")
				return
			}

			if _, err := v.VerifyEmail(token, purpose); err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					response.BadRequest(w, r, response.CodeEmailTokenExpired, "Email token expired")
					return
				}

				response.BadRequest(w, r, response.CodeInvalidEmailToken, "Invalid email token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])

	return token, token != ""
}
