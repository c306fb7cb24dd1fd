package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the API layer maps them to HTTP
// status codes.
var (
	// ErrEmptyTitle indicates a suggestion was requested without a title.
	// API layer should map this to HTTP 400 Bad Request.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrServiceClosed indicates the service is shutting down and no longer
	// starts background runs.
	ErrServiceClosed = errors.New("service is shutting down")
)

// ServiceError wraps an unexpected failure with the service and operation it
// happened in. Sentinels from lower layers stay reachable through Unwrap.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError.
func NewServiceError(service, op string, err error) *ServiceError {
	return &ServiceError{Service: service, Op: op, Err: err}
}

func errNilDependency(name string) error {
	return fmt.Errorf("%s cannot be nil", name)
}
