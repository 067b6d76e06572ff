package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnreachable covers transport failures and responses whose shape can't be understood
	ErrServiceUnreachable = errors.New("service unreachable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserMigrated is a sub-kind of ErrInvalidCredentials: the legacy account was moved to another provider
	ErrUserMigrated = errors.New("user migrated")
)

const (
	forbiddenOperationError = "ForbiddenOperationException"
	userMigratedCause       = "UserMigratedException"
)

// ServiceError is returned when a response body carries the error payload convention:
// an object with non-empty "error", optional "cause" and "errorMessage" fields
type ServiceError struct {
	Status    int
	ErrorType string
	Cause     string
	Message   string
}

func (e *ServiceError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%d %s (%s): %s", e.Status, e.ErrorType, e.Cause, e.Message)
	}

	return fmt.Sprintf("%d %s: %s", e.Status, e.ErrorType, e.Message)
}

func (e *ServiceError) Is(target error) bool {
	if e.ErrorType != forbiddenOperationError {
		return false
	}

	switch target {
	case ErrInvalidCredentials:
		return true
	case ErrUserMigrated:
		return e.Cause == userMigratedCause
	}

	return false
}

// StatusError reports a non-2xx response which didn't follow the error payload convention.
// The body is still decoded into the caller's destination when possible,
// since some services (XSTS) describe failures with their own fields.
// Server side failures (5xx) match ErrServiceUnreachable
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status code %d from %s", e.Status, e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrServiceUnreachable && e.Status >= 500
}

func unreachable(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrServiceUnreachable, url, err)
}
