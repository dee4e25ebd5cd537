package guard

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/bugisthegod/techmart-storefront/internal/token"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// UserRecord is the identity record persisted under KeyUser.
type UserRecord struct {
	ID        int64   `json:"id" validate:"gt=0"`
	Username  string  `json:"username" validate:"min=1,max=50"`
	Email     string  `json:"email" validate:"required,email,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Avatar    *string `json:"avatar,omitempty"`
	Status    *int    `json:"status,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

var validate = newValidator()

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	phonePattern    = regexp.MustCompile(`^[0-9\s\-()+]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate applies the per-key storage rules. An empty value is never valid.
func Validate(key, value string) bool {
	if value == "" {
		return false
	}
	switch key {
	case KeyToken:
		return token.IsValidFormat(value)
	case KeyUser:
		if !isObject(value) {
			return false
		}
		var record UserRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return false
		}
		return validate.Struct(&record) == nil
	default:
		return true
	}
}

// ValidateStruct checks dest against its validate tags and reports field messages as details.
func ValidateStruct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func isObject(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "{")
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "username":
		return "may only contain letters, numbers, underscores and hyphens"
	case "phone":
		return "must be a valid phone number"
	}
	return "is invalid"
}
