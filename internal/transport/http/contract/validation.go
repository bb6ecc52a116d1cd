// Package contract validates the REST-style request bodies accepted by the
// gateway's proof-of-work, token, and payment endpoints. The JSON-RPC
// endpoint does not use this package: its parameters are validated against
// the declarative method registry instead.
package contract

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError is one failed validation rule on a request body field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate runs struct-tag validation on v and returns a caller-facing
// FieldError for every failed rule, in declaration order.
func Validate(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, len(verrs))
		for i, fe := range verrs {
			out[i] = FieldError{Field: fe.Field(), Message: message(fe)}
		}
		return out
	}
	return []FieldError{{Field: "body", Message: "invalid request body"}}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hexadecimal":
		return "must be a hexadecimal string"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "uuid4":
		return "must be a valid uuid"
	default:
		return "is invalid"
	}
}
