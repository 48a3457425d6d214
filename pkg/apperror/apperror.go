// Package apperror defines the error kinds shared by every feature package.
// Feature packages wrap these sentinels with %w so callers can classify a
// failure with errors.Is without knowing which package produced it.
package apperror

import (
	"errors"
	"fmt"
)

// Error kinds
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrPermission          = errors.New("permission denied")
	ErrDuplicateMembership = errors.New("already a member")
	ErrCapacity            = errors.New("capacity reached")
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrNotMember           = errors.New("not a member")
	ErrValidation          = errors.New("validation failed")
)

// Validation returns an ErrValidation carrying a field-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidState returns an ErrInvalidState describing the rejected transition.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
