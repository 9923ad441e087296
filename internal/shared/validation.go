package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their json (or form) tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})
	_ = v.RegisterValidation("port", validatePort)
	return v
}

// validatePort accepts a TCP port written as a decimal string.
func validatePort(fl validator.FieldLevel) bool {
	port, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
	return err == nil && port >= 1 && port <= 65535
}

// ValidationMessages flattens validator errors into field -> message. The
// field key is the dotted namespace without the root struct name, e.g.
// "smtp.port". Non-validation errors land under "general".
func ValidationMessages(err error) map[string]string {
	if err == nil {
		return nil
	}
	out := make(map[string]string)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["general"] = err.Error()
		return out
	}
	for _, fe := range fieldErrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return label + " is required"
	case "email":
		return "Please enter a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("At least %s %s required", fe.Param(), pluralize(label, fe.Param()))
		}
		return fmt.Sprintf("%s must be of %s characters or more", label, fe.Param())
	case "eqfield":
		return "Passwords & Confirm Password must match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	case "url", "http_url":
		return label + " must be a valid URL"
	case "numeric", "number":
		return label + " must be a number"
	case "port":
		return label + " must be between 1 and 65535"
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", label)
	}
	return fmt.Sprintf("%s is invalid", label)
}

func humanize(field string) string {
	field = strings.ReplaceAll(field, "_", " ")
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func pluralize(label, n string) string {
	label = strings.ToLower(label)
	if n == "1" {
		return strings.TrimSuffix(label, "s")
	}
	return label
}
