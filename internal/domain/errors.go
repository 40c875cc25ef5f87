package domain

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors below wrap one of these so callers can classify with errors.Is.
var (
	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks a client-fault request that must not be retried as is.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence marks an unavailable store or a rejected write.
	ErrPersistence = errors.New("persistence failure")
	// ErrConflict marks a write that collides with an existing record.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks missing or wrong credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an authenticated caller acting outside its scope.
	ErrForbidden = errors.New("forbidden")
)

var (
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	ErrAnswerNotFound   = fmt.Errorf("answer %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrAdminNotFound    = fmt.Errorf("admin %w", ErrNotFound)
	ErrScoreNotFound    = fmt.Errorf("score %w", ErrNotFound)

	// ErrInvalidLabel is returned when a chosen or correct label is outside A, B, C.
	ErrInvalidLabel = fmt.Errorf("%w: label must be one of A, B, C", ErrInvalidInput)
	// ErrScoreExists is returned by score stores when the (user, category) pair already has a record.
	ErrScoreExists = fmt.Errorf("score record already exists: %w", ErrConflict)
	// ErrEmailTaken is returned when an admin email is already registered.
	ErrEmailTaken = fmt.Errorf("email already registered: %w", ErrConflict)
	// ErrInvalidCredentials hides which half of a login pair was wrong.
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
)

// Invalid builds an ErrInvalidInput with a field-level reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Persistence wraps a store error so it classifies as ErrPersistence while keeping the cause.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
