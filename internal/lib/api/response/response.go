package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const StatusSuccess = "success"

type Response struct {
	Code    int    `json:"code"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResponse struct {
	Response
	Errors []FieldError `json:"errors"`
}

type DataResponse[T any] struct {
	Code int `json:"code"`
	Data T   `json:"data"`
}

func OK(code int) Response {
	return Response{
		Code:   code,
		Status: StatusSuccess,
	}
}

func Error(code int, msg string) Response {
	return Response{
		Code:    code,
		Message: msg,
	}
}

func Data[T any](code int, data T) DataResponse[T] {
	return DataResponse[T]{
		Code: code,
		Data: data,
	}
}

func Internal() Response {
	return Error(CodeServerError, "Internal error")
}

func ValidationError(errs validator.ValidationErrors) ValidationResponse {
	var (
		msgs   []string
		fields []FieldError
	)

	for _, err := range errs {
		var msg string

		switch err.ActualTag() {
		case "required":
			msg = fmt.Sprintf("%s is required", err.Field())
		case "email":
			msg = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters long", err.Field(), err.Param())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters long", err.Field(), err.Param())
		case "password":
			msg = fmt.Sprintf("%s must contain at least one lowercase letter, one uppercase letter, and one special character", err.Field())
		case "eqfield":
			msg = fmt.Sprintf("%s must match %s", err.Field(), err.Param())
		case "oneof":
			msg = fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
		case "alphanum":
			msg = fmt.Sprintf("%s must contain only letters and digits", err.Field())
		case "datetime":
			msg = fmt.Sprintf("%s must be a date in %s format", err.Field(), err.Param())
		default:
			msg = fmt.Sprintf("%s is not valid", err.Field())
		}

		msgs = append(msgs, msg)
		fields = append(fields, FieldError{Field: err.Field(), Message: msg})
	}

	return ValidationResponse{
		Response: Error(CodeValidateError, strings.Join(msgs, ", ")),
		Errors:   fields,
	}
}

// Reply writes v as JSON with the given HTTP status.
func Reply(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func BadRequest(w http.ResponseWriter, r *http.Request, code int, msg string) {
	Reply(w, r, http.StatusBadRequest, Error(code, msg))
}

func Unauthorized(w http.ResponseWriter, r *http.Request, code int, msg string) {
	Reply(w, r, http.StatusUnauthorized, Error(code, msg))
}

func Forbidden(w http.ResponseWriter, r *http.Request, code int, msg string) {
	Reply(w, r, http.StatusForbidden, Error(code, msg))
}

func NotFound(w http.ResponseWriter, r *http.Request, code int, msg string) {
	Reply(w, r, http.StatusNotFound, Error(code, msg))
}

func Conflict(w http.ResponseWriter, r *http.Request, code int, msg string) {
	Reply(w, r, http.StatusConflict, Error(code, msg))
}

func TooManyRequests(w http.ResponseWriter, r *http.Request, msg string) {
	Reply(w, r, http.StatusTooManyRequests, Error(CodeTooManyRequests, msg))
}

func InternalServerError(w http.ResponseWriter, r *http.Request) {
	Reply(w, r, http.StatusInternalServerError, Internal())
}
