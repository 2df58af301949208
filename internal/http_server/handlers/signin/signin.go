package signin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/auth"
	"blog_service/internal/lib/api/request"
	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required"`
}

type Authenticator interface {
	Login(ctx context.Context, email, password, clientIP string) (auth.TokenPair, error)
}

func New(log *slog.Logger, validate *validator.Validate, authService Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signin.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := authService.Login(ctx, req.Email, req.Pass, request.ClientIP(r))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				resp.NotFound(w, r, resp.CodeUserNotFound, "User not found")
			case errors.Is(err, auth.ErrEmailNotVerified):
				resp.BadRequest(w, r, resp.CodeEmailIsNotVerified, "Email is not verified")
			case errors.Is(err, auth.ErrIncorrectPassword):
				resp.BadRequest(w, r, resp.CodeIncorrectPassword, "Incorrect password")
			default:
				log.Error("failed to login user", sl.Err(err))
				resp.InternalServerError(w, r)
			}

			return
		}

		ResponseOK(w, r, pair)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, pair auth.TokenPair) {
	resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, pair))
}
