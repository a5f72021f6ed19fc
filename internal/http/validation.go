package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/example/coaching-scheduler/internal/application"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "query"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return field.Name
		})
	})
	return validate
}

// validateRequest checks a decoded DTO and reports failures in the same
// shape as the application layer.
func validateRequest(dto any) error {
	err := requestValidator().Struct(dto)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := fieldName(fe)
		if _, seen := vErr.FieldErrors[field]; seen {
			continue
		}
		vErr.FieldErrors[field] = fieldMessage(field, fe)
	}
	return vErr
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	// dive errors are reported as "status[1]"
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	return name
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		return fmt.Sprintf("%s must be an RFC 3339 timestamp", field)
	case "url", "http_url":
		return fmt.Sprintf("%s must be an absolute http(s) URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "excludesall":
		return fmt.Sprintf("%s contains invalid characters", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
