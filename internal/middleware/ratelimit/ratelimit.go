// Package rateLimit throttles the public auth routes per client IP and the
// content writes per signed-in user.
package rateLimit

import (
	"net/http"
	"time"

	"blog_service/internal/lib/api/response"
	"blog_service/internal/middleware/authn"

	httprate "github.com/go-chi/httprate"
)

type Rule struct {
	Requests int
	Window   time.Duration
}

var (
	signIn         = Rule{Requests: 10, Window: 5 * time.Minute}
	signUp         = Rule{Requests: 5, Window: time.Hour}
	refresh        = Rule{Requests: 30, Window: 10 * time.Minute}
	logout         = Rule{Requests: 20, Window: 10 * time.Minute}
	verify         = Rule{Requests: 10, Window: 10 * time.Minute}
	resend         = Rule{Requests: 3, Window: time.Hour}
	forgotPassword = Rule{Requests: 3, Window: time.Hour}
	resetPassword  = Rule{Requests: 10, Window: time.Hour}
	contentWrite   = Rule{Requests: 60, Window: time.Minute}
)

// Limiter hands out the route middlewares. A disabled Limiter passes every
// request through.
type Limiter struct {
	disabled bool
}

func New(disabled bool) *Limiter {
	return &Limiter{disabled: disabled}
}

func (l *Limiter) SignIn() func(http.Handler) http.Handler  { return l.byIP(signIn) }
func (l *Limiter) SignUp() func(http.Handler) http.Handler  { return l.byIP(signUp) }
func (l *Limiter) Refresh() func(http.Handler) http.Handler { return l.byIP(refresh) }
func (l *Limiter) Logout() func(http.Handler) http.Handler  { return l.byIP(logout) }
func (l *Limiter) Verify() func(http.Handler) http.Handler  { return l.byIP(verify) }

func (l *Limiter) ResendVerificationEmail() func(http.Handler) http.Handler {
	return l.byIP(resend)
}

func (l *Limiter) ForgotPassword() func(http.Handler) http.Handler {
	return l.byIP(forgotPassword)
}

func (l *Limiter) ResetPassword() func(http.Handler) http.Handler {
	return l.byIP(resetPassword)
}

// ContentWrite limits post and category mutations per user. It must run
// after authn.RequireAuth; anonymous requests fall back to the client IP.
func (l *Limiter) ContentWrite() func(http.Handler) http.Handler {
	return l.limit(contentWrite, KeyByUser)
}

func (l *Limiter) byIP(rule Rule) func(http.Handler) http.Handler {
	return l.limit(rule, httprate.KeyByIP)
}

func (l *Limiter) limit(rule Rule, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if l.disabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(rule.Requests, rule.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.TooManyRequests(w, r, "Too many requests")
		}),
	)
}

func KeyByUser(r *http.Request) (string, error) {
	if id, ok := authn.IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID, nil
	}

	return httprate.KeyByIP(r)
}
