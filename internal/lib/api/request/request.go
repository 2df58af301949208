package request

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/logger/sl"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Decode reads the JSON body into dst and validates it. On failure it has
// already written a 400 response and returns false.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))

		resp.BadRequest(w, r, resp.CodeErrorFormat, "Failed to decode request")

		return false
	}

	return Validate(w, r, log, validate, dst)
}

// Validate runs validate on v and writes a 400 response listing the failed
// fields when it does not pass.
func Validate(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}

	log.Info("invalid request", sl.Err(err))

	var validateErr validator.ValidationErrors
	if errors.As(err, &validateErr) {
		resp.Reply(w, r, http.StatusBadRequest, resp.ValidationError(validateErr))
		return false
	}

	resp.BadRequest(w, r, resp.CodeValidateError, "Invalid request")

	return false
}

// ClientIP returns the caller address left in RemoteAddr by the RealIP
// middleware, without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// PathID returns the URL parameter name when it is a well-formed UUID.
// Anything else cannot name a stored row.
func PathID(r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)

	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}

	return id.String(), true
}
