package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by *Error values carrying a 404 status.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized is returned before any request is made when no session is configured,
	// and matched by *Error values carrying a 401 or 403 status.
	ErrUnauthorized = errors.New("You are not logged in. Run `auth:login` to authenticate or `help` for more info.")
)

// Error is a non-2xx response from the management API.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
