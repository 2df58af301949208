package signup

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
	"blog_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required,min=8,max=16,password"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Registerer interface {
	RegisterNewUser(ctx context.Context, email, password string) (models.User, error)
}

func New(log *slog.Logger, validate *validator.Validate, authService Registerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signup.New"

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

		user, err := authService.RegisterNewUser(ctx, req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserExists):
				resp.Conflict(w, r, resp.CodeUserAlreadyExists, "User already exists")
			case errors.Is(err, auth.ErrEmailDeliveryFailed):
				resp.BadRequest(w, r, resp.CodeSentEmailFail, "Failed to send verification email")
			default:
				log.Error("failed to register user", sl.Err(err))
				resp.InternalServerError(w, r)
			}

			return
		}

		log.Info("user registered", slog.String("uid", user.ID))

		ResponseOK(w, r, user)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.User) {
	resp.Reply(w, r, http.StatusCreated, resp.Data(http.StatusCreated, User{
		ID:    user.ID,
		Email: user.Email,
	}))
}
