package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/auth"
	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
)

const StatusAlreadyVerified = "already verified"

type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) (auth.VerifyResult, error)
}

// New consumes the token of a verification link. The link token has already
// been checked by the email token middleware.
func New(log *slog.Logger, authService EmailVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := authService.VerifyEmail(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				resp.NotFound(w, r, resp.CodeUserNotFound, "User not found")
			case errors.Is(err, auth.ErrEmailTokenExpired):
				resp.BadRequest(w, r, resp.CodeEmailTokenExpired, "Email token expired")
			case errors.Is(err, auth.ErrInvalidEmailToken):
				resp.BadRequest(w, r, resp.CodeInvalidEmailToken, "Invalid email token")
			default:
				log.Error("failed to verify email", sl.Err(err))
				resp.InternalServerError(w, r)
			}

			return
		}

		out := resp.OK(http.StatusOK)
		if res == auth.AlreadyVerified {
			out.Status = StatusAlreadyVerified
		}

		resp.Reply(w, r, http.StatusOK, out)
	}
}
