package service

import (
	"errors"
	"fmt"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
)

var (
	// ErrSensorNotFound is returned when a referenced sensor does not exist.
	ErrSensorNotFound = repository.ErrSensorNotFound
	// ErrAlertNotFound is returned when a referenced alert rule does not exist.
	ErrAlertNotFound = repository.ErrAlertNotFound
)

// ValidationError reports a request that is malformed or incomplete. Handlers
// answer it with 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err means a referenced record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSensorNotFound) || errors.Is(err, ErrAlertNotFound)
}
