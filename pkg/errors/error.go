package errors

import (
	"errors"
	"fmt"
)

const (
	// Prefix used for error code strings
	// Example:
	//   ErrorCodePrefix = "k8stag"
	//   results in: k8stag-3
	ErrorCodePrefix = "k8stag"

	// InvalidInput occurs when template segments, values or YAML source are malformed
	ErrorInvalidInput ServiceErrorCode = 1

	// MissingKind occurs when a parsed document has no kind field
	ErrorMissingKind ServiceErrorCode = 2

	// UnknownField occurs when a document field has no schema rule under its enclosing type
	ErrorUnknownField ServiceErrorCode = 3

	// FieldType occurs when a document value cannot be converted to the field's declared type
	ErrorFieldType ServiceErrorCode = 4

	// UnsupportedAPIVersion occurs when no API client is bound to the declared apiVersion
	ErrorUnsupportedAPIVersion ServiceErrorCode = 5

	// UnsupportedKind occurs when no schema or operation is known for a kind
	ErrorUnsupportedKind ServiceErrorCode = 6

	// KubernetesError occurs when the Kubernetes client cannot be constructed
	ErrorKubernetesError ServiceErrorCode = 7

	// Validation occurs when a configuration object fails validation
	ErrorValidation ServiceErrorCode = 8

	// General occurs when an error fails to match any other error code
	ErrorGeneral ServiceErrorCode = 9
)

type ServiceErrorCode int

type ServiceErrors []ServiceError

// Coded is implemented by every error this module raises itself.
type Coded interface {
	error
	ErrorCode() ServiceErrorCode
}

func Find(code ServiceErrorCode) (bool, *ServiceError) {
	for _, err := range Errors() {
		if err.Code == code {
			return true, &err
		}
	}
	return false, nil
}

func Errors() ServiceErrors {
	return ServiceErrors{
		ServiceError{ErrorInvalidInput, "Invalid input"},
		ServiceError{ErrorMissingKind, "Document has no kind"},
		ServiceError{ErrorUnknownField, "Unknown field"},
		ServiceError{ErrorFieldType, "Field value has the wrong type"},
		ServiceError{ErrorUnsupportedAPIVersion, "Unsupported apiVersion"},
		ServiceError{ErrorUnsupportedKind, "Unsupported kind"},
		ServiceError{ErrorKubernetesError, "Kubernetes client error"},
		ServiceError{ErrorValidation, "General validation failure"},
		ServiceError{ErrorGeneral, "Unspecified error"},
	}
}

type ServiceError struct {
	// Code is the numeric and distinct ID for the error
	Code ServiceErrorCode
	// Reason is the context-specific reason the error was generated
	Reason string
}

// New Reason can be a string with format verbs, which will be replaced by the specified values
func New(code ServiceErrorCode, reason string, values ...interface{}) *ServiceError {
	exists, err := Find(code)
	if !exists {
		err = &ServiceError{ErrorGeneral, "Unspecified error"}
	}

	if reason != "" {
		err.Reason = fmt.Sprintf(reason, values...)
	}

	return err
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", *CodeStr(e.Code), e.Reason)
}

// ErrorCode implements Coded
func (e *ServiceError) ErrorCode() ServiceErrorCode {
	return e.Code
}

func (e *ServiceError) AsError() error {
	return fmt.Errorf("%s", e.Error())
}

func CodeStr(code ServiceErrorCode) *string {
	str := fmt.Sprintf("%s-%d", ErrorCodePrefix, code)
	return &str
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code ServiceErrorCode) bool {
	var coded Coded
	if !errors.As(err, &coded) {
		return false
	}
	return coded.ErrorCode() == code
}

func InvalidInput(reason string, values ...interface{}) *ServiceError {
	return New(ErrorInvalidInput, reason, values...)
}

func MissingKind(reason string, values ...interface{}) *ServiceError {
	return New(ErrorMissingKind, reason, values...)
}

func FieldType(reason string, values ...interface{}) *ServiceError {
	return New(ErrorFieldType, reason, values...)
}

func UnsupportedAPIVersion(reason string, values ...interface{}) *ServiceError {
	return New(ErrorUnsupportedAPIVersion, reason, values...)
}

func UnsupportedKind(reason string, values ...interface{}) *ServiceError {
	return New(ErrorUnsupportedKind, reason, values...)
}

func KubernetesError(reason string, values ...interface{}) *ServiceError {
	return New(ErrorKubernetesError, reason, values...)
}

func Validation(reason string, values ...interface{}) *ServiceError {
	return New(ErrorValidation, reason, values...)
}

func GeneralError(reason string, values ...interface{}) *ServiceError {
	return New(ErrorGeneral, reason, values...)
}

func IsInvalidInput(err error) bool {
	return HasCode(err, ErrorInvalidInput)
}

func IsMissingKind(err error) bool {
	return HasCode(err, ErrorMissingKind)
}

func IsUnknownField(err error) bool {
	return HasCode(err, ErrorUnknownField)
}

func IsFieldType(err error) bool {
	return HasCode(err, ErrorFieldType)
}

func IsUnsupportedAPIVersion(err error) bool {
	return HasCode(err, ErrorUnsupportedAPIVersion)
}

func IsUnsupportedKind(err error) bool {
	return HasCode(err, ErrorUnsupportedKind)
}
