package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable error code rendered to API callers.
type Kind string

const (
	NotFound     Kind = "NOT_FOUND"
	Forbidden    Kind = "FORBIDDEN"
	BadRequest   Kind = "BAD_REQUEST"
	Conflict     Kind = "CONFLICT"
	Unauthorized Kind = "UNAUTHORIZED"
	Internal     Kind = "INTERNAL_SERVER_ERROR"
)

// Error standardizes service errors so handlers never guess status codes.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field validation messages (Laravel-like).
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds "<resource> not found".
func NotFoundf(resource string) *Error {
	return &Error{Kind: NotFound, Message: resource + " not found"}
}

func ForbiddenErr(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return &Error{Kind: Forbidden, Message: message}
}

// Validation wraps a field → messages map.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: BadRequest, Message: "Validation failed", Fields: fields}
}

// Field is a shortcut for a single-field validation failure.
func Field(name, message string) *Error {
	return Validation(map[string][]string{name: {message}})
}

// Wrap marks err as internal unless it already carries a kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: Internal, Message: message, Err: err}
}

// From extracts the typed error, treating anything else as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: Internal, Message: "Internal Server Error", Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
