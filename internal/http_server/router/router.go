package router

import (
	"log/slog"
	"net/http"

	"blog_service/internal/auth"
	"blog_service/internal/blog"
	"blog_service/internal/http_server/handlers/categories"
	"blog_service/internal/http_server/handlers/forgot"
	"blog_service/internal/http_server/handlers/health"
	"blog_service/internal/http_server/handlers/logout"
	"blog_service/internal/http_server/handlers/posts"
	"blog_service/internal/http_server/handlers/refresh"
	"blog_service/internal/http_server/handlers/resend"
	"blog_service/internal/http_server/handlers/reset"
	"blog_service/internal/http_server/handlers/signin"
	"blog_service/internal/http_server/handlers/signup"
	"blog_service/internal/http_server/handlers/users"
	"blog_service/internal/http_server/handlers/verify"
	"blog_service/internal/lib/jwt"
	"blog_service/internal/middleware/authn"
	"blog_service/internal/middleware/metrics"
	rateLimit "blog_service/internal/middleware/ratelimit"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Deps struct {
	Log        *slog.Logger
	Validate   *validator.Validate
	Codec      *jwt.Codec
	Auth       *auth.Auth
	Categories *blog.Categories
	Posts      *blog.Posts
	Metrics    *metrics.Metrics
	Health     map[string]health.Pinger

	// DisableRateLimit turns off every rate limit.
	DisableRateLimit bool
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	rl := rateLimit.New(d.DisableRateLimit)

	requireAuth := authn.RequireAuth(d.Log, d.Codec)

	r.Route("/auth", func(r chi.Router) {
		r.With(rl.SignUp()).Post("/sign-up", signup.New(d.Log, d.Validate, d.Auth))
		r.With(rl.SignIn()).Post("/sign-in", signin.New(d.Log, d.Validate, d.Auth))
		r.With(rl.Refresh()).Post("/refresh-token", refresh.New(d.Log, d.Validate, d.Auth))
		r.With(rl.Logout()).Post("/logout", logout.New(d.Log, d.Validate, d.Auth))
		r.With(
			rl.Verify(),
			authn.RequireEmailToken(d.Codec, jwt.KindEmailVerification),
		).Get("/verify-email", verify.New(d.Log, d.Auth))
		r.With(rl.ResendVerificationEmail()).Post("/resend-validation", resend.New(d.Log, d.Validate, d.Auth))
		r.With(rl.ForgotPassword()).Post("/forgot-password", forgot.New(d.Log, d.Validate, d.Auth))
		r.With(rl.ResetPassword()).Post("/reset-password", reset.New(d.Log, d.Validate, d.Auth))
	})

	r.Route("/users/me", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", users.Me(d.Log, d.Auth))
		r.Put("/", users.Update(d.Log, d.Validate, d.Auth))
		r.Put("/change-password", users.ChangePassword(d.Log, d.Validate, d.Auth))
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", categories.List(d.Log, d.Categories))
		r.Get("/{id}", categories.Get(d.Log, d.Categories))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, authn.RequireAdmin, rl.ContentWrite())
			r.Post("/", categories.Create(d.Log, d.Validate, d.Categories))
			r.Put("/{id}", categories.Update(d.Log, d.Validate, d.Categories))
			r.Delete("/{id}", categories.Delete(d.Log, d.Categories))
		})
	})

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", posts.List(d.Log, d.Validate, d.Posts))
		r.With(authn.OptionalAuth(d.Codec)).Get("/{id}", posts.Get(d.Log, d.Posts))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", posts.Mine(d.Log, d.Validate, d.Posts))

			r.Group(func(r chi.Router) {
				r.Use(rl.ContentWrite())
				r.Post("/", posts.Create(d.Log, d.Validate, d.Posts))
				r.Put("/{id}", posts.Update(d.Log, d.Validate, d.Posts))
				r.Delete("/{id}", posts.Delete(d.Log, d.Posts))
			})
		})
	})

	r.Get("/healthz", health.New(d.Log, d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	return r
}
