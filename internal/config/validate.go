package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field namespaces by their json tag names, so a
// violation's path matches the key used in the JSON config document.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate schema-checks cfg, returning a ValidationError whose Errors
// carry a dotted field path and message per violation.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err == nil {
		return nil
	} else if verrs, ok := err.(validator.ValidationErrors); ok {
		fieldErrs := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fieldErrs = append(fieldErrs, FieldError{
				Path:    jsonPath(fe.Namespace()),
				Message: describeTag(fe),
			})
		}
		return &ValidationError{Errors: fieldErrs}
	} else {
		return &ValidationError{Errors: []FieldError{{Path: "", Message: err.Error()}}}
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation %q", fe.Tag())
	}
}

// jsonPath strips the leading "Config." struct-namespace prefix the
// validator library reports, leaving a path keyed the same way the JSON
// config document and LOG_ env vars are.
func jsonPath(namespace string) string {
	for i := 0; i < len(namespace); i++ {
		if namespace[i] == '.' {
			return lowerFirstSegments(namespace[i+1:])
		}
	}
	return namespace
}

func lowerFirstSegments(s string) string {
	out := make([]byte, 0, len(s))
	start := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			start = true
			out = append(out, c)
			continue
		}
		if start && c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		start = false
		out = append(out, c)
	}
	return string(out)
}
