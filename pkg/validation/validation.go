// Package validation wraps go-playground/validator with caller-facing
// messages keyed by JSON field name.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "must be at least %s characters",
	"max":      "must be at most %s characters",
	"gte":      "must be greater than or equal to %s",
	"oneof":    "must be one of: %s",
	"uuid":     "must be a valid id",
}

// Struct validates s and returns nil or an error whose message describes the
// first failing field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	return errors.New(FirstMessage(err))
}

// FirstMessage formats the first validation failure in err.
func FirstMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "request is invalid"
	}
	first := verrs[0]
	msg, ok := messages[first.Tag()]
	if !ok {
		msg = "is invalid"
	}
	if strings.Contains(msg, "%s") {
		param := first.Param()
		if first.Tag() == "oneof" {
			param = strings.Join(strings.Fields(param), ", ")
		}
		msg = strings.Replace(msg, "%s", param, 1)
	}
	return first.Field() + " " + msg
}
