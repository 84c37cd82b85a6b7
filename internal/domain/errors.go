package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrJobNotFound     = errors.New("pending job not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNothingToExport = errors.New("no generated results")
)

// AuthError reports a missing or rejected credential for a backend. A
// client returning AuthError for a missing key never touched the network.
type AuthError struct {
	Backend string
	Reason  string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: api key is required", e.Backend)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Reason)
}

// MissingCredential builds the AuthError returned when no key is configured.
func MissingCredential(backend string) *AuthError {
	return &AuthError{Backend: backend}
}

// RequestError wraps a transport level failure (DNS, refused, timeout).
type RequestError struct {
	Backend   string
	Operation string
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s: request failed: %v", e.Backend, e.Operation, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// RemoteError carries a non-2xx answer from a generation backend.
type RemoteError struct {
	Backend   string
	Operation string
	Status    int
	Body      string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: %s: status %d", e.Backend, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: %s: status %d: %s", e.Backend, e.Operation, e.Status, body)
}

// IsModeration reports whether the backend blocked the content (HTTP 422).
func (e *RemoteError) IsModeration() bool {
	return e.Status == http.StatusUnprocessableEntity
}

// MalformedResponseError means a success response carried no recognizable result.
type MalformedResponseError struct {
	Operation string
	Keys      []string
}

func (e *MalformedResponseError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s: response has no result urls", e.Operation)
	}
	return fmt.Sprintf("%s: response has no result urls (keys: %s)", e.Operation, strings.Join(e.Keys, ", "))
}

// IsAuthError reports whether err carries an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsModeration reports whether err is a content moderation rejection.
func IsModeration(err error) bool {
	var target *RemoteError
	return errors.As(err, &target) && target.IsModeration()
}
