package errors

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrTooManyLoginAttempts = errors.New("too many failed login attempts")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrUserNotFound         = errors.New("user not found")
)

// ValidationError carries a message that is safe to return to the client.
type ValidationError struct {
	Message string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// TooManyAttemptsError reports a lockout together with the time left on it.
type TooManyAttemptsError struct {
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("%s: retry in %d minutes", ErrTooManyLoginAttempts, e.Minutes())
}

func (e *TooManyAttemptsError) Unwrap() error {
	return ErrTooManyLoginAttempts
}

// Minutes returns the remaining lockout rounded up to whole minutes.
func (e *TooManyAttemptsError) Minutes() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Minutes()))
}
