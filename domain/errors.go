package domain

import (
	"errors"
	"fmt"
)

// Credential store errors
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrNoStoredAuth = errors.New("no stored authentication")
)

// Token errors
var (
	ErrTokenExpired        = errors.New("access token has expired")
	ErrRefreshTokenMissing = errors.New("refresh token missing")
)

// Session errors
var (
	ErrSessionExpired = errors.New("session has expired")
	ErrSessionInvalid = errors.New("session is invalid")
)

// Controller errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginFailed      = errors.New("login failed")
)

// BackendError is a non-2xx answer from the auth backend. The controller
// treats a 401 and a transport failure identically; the status is kept for
// logging and caller display only.
type BackendError struct {
	Op     string
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
}

// IsAuthRejection reports whether the backend explicitly rejected the
// credential, as opposed to failing some other way.
func (e *BackendError) IsAuthRejection() bool {
	return e.Status == 401
}
