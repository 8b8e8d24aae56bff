package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired is returned when the backend rejects the session token.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrWorldUnknown is returned by the oracle for worlds it has no timer for.
	ErrWorldUnknown = errors.New("world unknown to oracle")
)

// ErrorCategory determines how a failed call should be handled.
type ErrorCategory int

const (
	// Recoverable errors may succeed on a later tick: 5xx, 408, 429, network failures.
	Recoverable ErrorCategory = iota
	// Irrecoverable errors will fail again unchanged: other 4xx.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError wraps a failed backend call with categorization metadata.
type ClassifiedError struct {
	Category   ErrorCategory
	StatusCode int    // HTTP status code (0 for network errors)
	Body       string // Response body for debugging
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// IsIrrecoverable reports whether err carries the Irrecoverable category.
func IsIrrecoverable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category == Irrecoverable
	}
	return false
}

func categoryFor(status int) ErrorCategory {
	switch {
	case status == 408 || status == 429:
		return Recoverable
	case status >= 400 && status < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

// NewHTTPError classifies a non-success response. 401 wraps ErrAuthExpired.
func NewHTTPError(op string, status int, body string) *ClassifiedError {
	underlying := fmt.Errorf("%s failed: HTTP %d", op, status)
	if status == 401 {
		underlying = fmt.Errorf("%s: %w", op, ErrAuthExpired)
	}
	return &ClassifiedError{
		Category:   categoryFor(status),
		StatusCode: status,
		Body:       body,
		Underlying: underlying,
	}
}

// NewNetworkError classifies a transport failure; these are always recoverable.
func NewNetworkError(op string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", op, err),
	}
}
