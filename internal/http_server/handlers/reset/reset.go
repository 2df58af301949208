package reset

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
	Email           string `json:"email" validate:"required,email"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=16,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type PasswordResetter interface {
	ResetPassword(ctx context.Context, email, password, token string) error
}

func New(log *slog.Logger, validate *validator.Validate, authService PasswordResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reset.New"

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

		if err := authService.ResetPassword(ctx, req.Email, req.Password, req.Token); err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				resp.NotFound(w, r, resp.CodeUserNotFound, "User not found")
			case errors.Is(err, auth.ErrInvalidResetToken):
				resp.BadRequest(w, r, resp.CodeInvalidResetPassToken, "Invalid reset password token")
			default:
				log.Error("failed to reset password", sl.Err(err))
				resp.InternalServerError(w, r)
			}

			return
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}
