package users

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
	"blog_service/internal/middleware/authn"
	"blog_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

type UserService interface {
	Profile(ctx context.Context, uid string) (models.User, error)
	UpdateProfile(ctx context.Context, uid string, p models.Profile) (models.User, error)
	ChangePassword(ctx context.Context, uid, oldPassword, newPassword string) error
}

type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	IsAdmin         bool   `json:"isAdmin"`
	IsVerifiedEmail bool   `json:"isVerifiedEmail"`
	models.Profile
}

type UpdateRequest struct {
	Firstname *string `json:"firstname" validate:"omitempty,max=64"`
	Lastname  *string `json:"lastname" validate:"omitempty,max=64"`
	BirthDay  *string `json:"birthDay" validate:"omitempty,datetime=2006-01-02"`
	Gender    *string `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=16,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func Me(log *slog.Logger, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Me"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := svc.Profile(ctx, id.UserID)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		ResponseOK(w, r, user)
	}
}

func Update(log *slog.Logger, validate *validator.Validate, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Update"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		var req UpdateRequest
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		profile := models.Profile{
			Firstname: req.Firstname,
			Lastname:  req.Lastname,
			Address:   req.Address,
		}
		if req.BirthDay != nil {
			// Format already checked by the datetime rule.
			day, _ := time.Parse(dateLayout, *req.BirthDay)
			profile.BirthDay = &day
		}
		if req.Gender != nil {
			g := models.Gender(*req.Gender)
			profile.Gender = &g
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := svc.UpdateProfile(ctx, id.UserID, profile)
		if err != nil {
			replyError(w, r, log, err)
			return
		}

		ResponseOK(w, r, user)
	}
}

func ChangePassword(log *slog.Logger, validate *validator.Validate, svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.ChangePassword"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			resp.Unauthorized(w, r, resp.CodeUnauthorized, "Unauthorized")
			return
		}

		var req ChangePasswordRequest
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := svc.ChangePassword(ctx, id.UserID, req.OldPassword, req.Password); err != nil {
			replyError(w, r, log, err)
			return
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, u models.User) {
	resp.Reply(w, r, http.StatusOK, resp.Data(http.StatusOK, User{
		ID:              u.ID,
		Email:           u.Email,
		IsAdmin:         u.IsAdmin,
		IsVerifiedEmail: u.IsVerified,
		Profile:         u.Profile,
	}))
}

func replyError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		resp.NotFound(w, r, resp.CodeUserNotFound, "User not found")
	case errors.Is(err, auth.ErrIncorrectPassword):
		resp.BadRequest(w, r, resp.CodeIncorrectPassword, "Incorrect password")
	default:
		log.Error("request failed", sl.Err(err))
		resp.InternalServerError(w, r)
	}
}
