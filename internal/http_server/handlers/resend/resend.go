package resend

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
}

type Resender interface {
	ResendVerification(ctx context.Context, email string) error
}

func New(log *slog.Logger, validate *validator.Validate, authService Resender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resend.New"

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

		if err := authService.ResendVerification(ctx, req.Email); err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				resp.NotFound(w, r, resp.CodeUserNotFound, "User not found")
			case errors.Is(err, auth.ErrEmailAlreadyVerified):
				resp.Conflict(w, r, resp.CodeEmailHasBeenVerified, "Email has been verified")
			case errors.Is(err, auth.ErrTooManyRequests):
				resp.TooManyRequests(w, r, "Please wait before requesting another email")
			case errors.Is(err, auth.ErrEmailDeliveryFailed):
				resp.BadRequest(w, r, resp.CodeSentEmailFail, "Failed to send verification email")
			default:
				log.Error("failed to resend verification email", sl.Err(err))
				resp.InternalServerError(w, r)
			}

			return
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}
