// Package errors defines sentinel errors shared across the service
// layer. Handlers map them to HTTP status codes.
package errors

import (
	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = pkgerrors.New("not found")
	// ErrInvalidInput indicates the request referenced an unknown item
	// or carried a malformed payload. No state is mutated.
	ErrInvalidInput = pkgerrors.New("invalid input")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return pkgerrors.Wrapf(ErrNotFound, format, args...)
}

// InvalidInputf wraps ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...any) error {
	return pkgerrors.Wrapf(ErrInvalidInput, format, args...)
}
