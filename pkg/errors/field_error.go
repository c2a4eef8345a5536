package errors

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Unknown Field Error Type
// -----------------------------------------------------------------------------

// UnknownFieldError reports a document field that has no rule under its enclosing record type.
type UnknownFieldError struct {
	// Field is the document field name that could not be resolved
	Field string
	// Type is the record type the field was looked up on (e.g. "Container")
	Type string
	// Path is the document path of the field (e.g. "spec.template.spec.containers[0].foo")
	Path string
}

// Error implements the error interface.
func (e *UnknownFieldError) Error() string {
	if e.Path != "" && e.Path != e.Field {
		return fmt.Sprintf("%s: unknown field %q in %s at %s", *CodeStr(ErrorUnknownField), e.Field, e.Type, e.Path)
	}
	return fmt.Sprintf("%s: unknown field %q in %s", *CodeStr(ErrorUnknownField), e.Field, e.Type)
}

// ErrorCode implements Coded
func (e *UnknownFieldError) ErrorCode() ServiceErrorCode {
	return ErrorUnknownField
}

// NewUnknownFieldError creates a new UnknownFieldError
func NewUnknownFieldError(field, typeName, path string) *UnknownFieldError {
	return &UnknownFieldError{
		Field: field,
		Type:  typeName,
		Path:  path,
	}
}

// AsUnknownFieldError checks if an error is an UnknownFieldError and returns it.
// This function supports wrapped errors via errors.As.
//
// Example usage:
//
//	if fieldErr, ok := errors.AsUnknownFieldError(err); ok {
//	    log.Printf("remove %s from %s", fieldErr.Field, fieldErr.Type)
//	}
func AsUnknownFieldError(err error) (*UnknownFieldError, bool) {
	var fieldErr *UnknownFieldError
	if errors.As(err, &fieldErr) {
		return fieldErr, true
	}
	return nil, false
}
