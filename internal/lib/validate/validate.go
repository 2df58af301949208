package validate

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const specialChars = `!@#$%^&*(),.?":{}|<>[]`

// New returns a validator that reports fields by their json names and
// understands the "password" tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// Registration cannot fail for a non-empty tag and a non-nil func.
	_ = v.RegisterValidation("password", password)

	return v
}

// password requires at least one lowercase letter, one uppercase letter
// and one special character.
func password(fl validator.FieldLevel) bool {
	var lower, upper, special bool

	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	return lower && upper && special
}
