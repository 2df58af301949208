package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/lib/api/request"
	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutService interface {
	Logout(ctx context.Context, refreshToken string) error
}

func New(log *slog.Logger, validate *validator.Validate, authService LogoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

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

		if err := authService.Logout(ctx, req.RefreshToken); err != nil {
			log.Error("failed to logout", sl.Err(err))
			resp.InternalServerError(w, r)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}
