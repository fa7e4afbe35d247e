package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed call to a remote API, with the HTTP status code and the
// service's error message.
type Error struct {
	StatusCode int
	Status     string
	Message    string
	Method     string
	Path       string
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.Path, e.Status, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code of the response.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

// IsPermissionDenied returns true if the error is a 403.
func IsPermissionDenied(err error) bool {
	return statusIs(err, http.StatusForbidden)
}

// IsUnauthenticated returns true if the error is a 401.
func IsUnauthenticated(err error) bool {
	return statusIs(err, http.StatusUnauthorized)
}

func statusIs(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}
