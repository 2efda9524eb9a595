// Package validation checks `validate` struct tags and reports every failing
// field as a single typed error that transports can render as a bad request.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"carebook/backend/internal/domain"
)

type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Violations are reported under the json name clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	// clock accepts a 24-hour HH:MM or HH:MM:SS time of day.
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTime(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates s against its `validate` tags. Failing fields come back as
// an *Error in declaration order; a nil error means every tag passed.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Violation{Field: fe.Field(), Message: message(fe)})
	}
	return &Error{Violations: out}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a calendar date in YYYY-MM-DD form"
	case "clock":
		return "must be HH:MM or HH:MM:SS (24-hour)"
	case "gt":
		if fe.Param() == "0" {
			return "must be a positive integer"
		}
		return "must be greater than " + fe.Param()
	case "gte":
		if fe.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}
