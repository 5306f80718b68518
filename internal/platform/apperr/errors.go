// Package apperr defines the error kinds shared by the domain, conversion and
// transport layers. Every error built here wraps one of the sentinel kinds so
// callers can branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrDomainState = errors.New("invalid state transition")
	ErrDecode      = errors.New("decode failed")
	ErrConversion  = errors.New("conversion failed")
)

// Error carries a kind, a human readable message and, for validation errors,
// the values the caller could have supplied instead.
type Error struct {
	Kind        error
	Message     string
	ValidValues []string
	Cause       error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.ValidValues) > 0 {
		msg += " (valid values: " + strings.Join(e.ValidValues, ", ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// InvalidValue reports an enum-like input that matched none of valid.
func InvalidValue(field, got string, valid []string) error {
	return &Error{
		Kind:        ErrValidation,
		Message:     fmt.Sprintf("invalid %s %q", field, got),
		ValidValues: valid,
	}
}

func DomainState(format string, args ...interface{}) error {
	return &Error{Kind: ErrDomainState, Message: fmt.Sprintf(format, args...)}
}

func Decode(format string, cause error) error {
	return &Error{Kind: ErrDecode, Message: fmt.Sprintf("failed to decode %s content", format), Cause: cause}
}

// Conversion reports a single resource that could not be mapped to a domain
// entity. The message matches the import result error list format.
func Conversion(kind string, cause error) error {
	return &Error{Kind: ErrConversion, Message: "Failed to convert " + kind, Cause: cause}
}

// HTTPStatus maps an error kind to the status code used by the handlers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, ErrDomainState):
		return http.StatusConflict
	case errors.Is(err, ErrConversion):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
