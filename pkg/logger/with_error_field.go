package logger

import (
	"context"
	"errors"
	"io"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// WithErrorField returns a context carrying the error message as the "error" log field.
// Unexpected errors also get a "stack_trace" field; errors that are an expected outcome
// (cancellation, API status errors, this module's coded errors) do not.
// A nil error returns ctx unchanged.
func WithErrorField(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	ctx = WithLogField(ctx, "error", err.Error())
	if shouldCaptureStackTrace(err) {
		ctx = WithLogField(ctx, "stack_trace", stackTrace(1))
	}
	return ctx
}

// shouldCaptureStackTrace decides whether an error is unexpected enough to need a stack
func shouldCaptureStackTrace(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return false
	}
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		return false
	}
	var coded apperrors.Coded
	return !errors.As(err, &coded)
}
