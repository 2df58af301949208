package refresh

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
	RefreshToken string `json:"refreshToken"`
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken, clientIP string) (auth.TokenPair, error)
}

func New(log *slog.Logger, validate *validator.Validate, authService Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		if req.RefreshToken == "" {
			resp.BadRequest(w, r, resp.CodeRefreshTokenIsNull, "Refresh token is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := authService.Refresh(ctx, req.RefreshToken, request.ClientIP(r))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrRefreshTokenExpired):
				resp.Unauthorized(w, r, resp.CodeRefreshTokenExpired, "Refresh token expired")
			case errors.Is(err, auth.ErrInvalidRefreshToken):
				resp.Unauthorized(w, r, resp.CodeInvalidRefreshToken, "Invalid refresh token")
			default:
				log.Error("failed to refresh tokens", sl.Err(err))
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
