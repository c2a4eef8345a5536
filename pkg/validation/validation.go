// Package validation wraps go-playground/validator for the option structs of
// this module. Field names in messages follow the yaml/json tag of the field.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

// ValidationError is a single failed constraint
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors holds every failure found in one struct
type ValidationErrors struct {
	Errors []ValidationError
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%s: validation failed with %d error(s):\n  - %s",
		*apperrors.CodeStr(apperrors.ErrorValidation), len(ve.Errors), strings.Join(msgs, "\n  - "))
}

// ErrorCode implements errors.Coded
func (ve *ValidationErrors) ErrorCode() apperrors.ServiceErrorCode {
	return apperrors.ErrorValidation
}

func (ve *ValidationErrors) Add(path, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Path: path, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// tagName picks the yaml tag, then the json tag, then the Go field name.
func tagName(fld reflect.StructField) string {
	for _, key := range []string{"yaml", "json"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

func getStructValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(tagName)
	})
	return structValidator
}

// ValidateStruct checks s against its validate tags. The returned error is a
// *ValidationErrors carrying the Validation code, or nil.
func ValidateStruct(s interface{}) error {
	err := getStructValidator().Struct(s)
	if err == nil {
		return nil
	}

	result := &ValidationErrors{}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		result.Add("", err.Error())
		return result
	}
	for _, e := range errs {
		result.Add(formatFieldPath(e.Namespace()), formatMessage(e))
	}
	return result
}

func formatMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("%q is invalid (allowed: %s)", e.Value(), strings.ReplaceAll(e.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "file":
		return fmt.Sprintf("file %q does not exist", e.Value())
	case "hostname_port":
		return fmt.Sprintf("%q is not a host:port address", e.Value())
	default:
		return fmt.Sprintf("failed validation %s", e.Tag())
	}
}

// formatFieldPath drops the root struct name from a validator namespace
// e.g., "ClientConfig.qps" -> "qps"
func formatFieldPath(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) < 2 {
		return namespace
	}
	return parts[1]
}
