package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Exchange-specific errors

var (
	// ErrExchangeUnavailable indicates an exchange API is unavailable
	ErrExchangeUnavailable = errors.New("exchange unavailable")

	// ErrCircuitOpen indicates polling is suspended for an exchange
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRateLimited indicates API rate limit exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBadPayload indicates an exchange response could not be parsed
	ErrBadPayload = errors.New("malformed exchange payload")

	// ErrPriceUnavailable indicates no reference price could be obtained
	ErrPriceUnavailable = errors.New("reference price unavailable")
)

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
