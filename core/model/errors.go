package model

import (
	"errors"
	"fmt"
)

// Error kinds returned by the dispatch core. Callers classify errors with
// errors.Is; the concrete message carries the context.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")
)

// Validationf returns an ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf returns an ErrConflict with a formatted reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// StorageError wraps a backend failure for operation op. A nil err yields nil.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// UnitNotFound reports a missing unit id.
func UnitNotFound(id int64) error { return NotFoundf("unit %d", id) }

// CallNotFound reports a missing call id.
func CallNotFound(id int64) error { return NotFoundf("call %d", id) }

// DuplicateContactHandle reports a contact handle already bound to another
// unit. The error is both a validation and a conflict failure.
func DuplicateContactHandle(handle string) error {
	return fmt.Errorf("%w: %w: contact handle %q already registered", ErrValidation, ErrConflict, handle)
}

// KindOf classifies err into one of "validation", "not_found", "conflict",
// "storage" or "internal". Conflict wins over validation.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
