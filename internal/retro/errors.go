package retro

import (
	"errors"
	"fmt"

	"github.com/chxlky/squadbooster/database"
)

// ValidationError is returned for malformed input or a request the board's
// current state does not allow.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Reason)
}

// NotFoundError is returned when a referenced ritual or card does not
// exist, including a card deleted by a concurrent merge.
type NotFoundError struct {
	Op     string
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s failed: %s not found", e.Op, e.Entity)
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func invalid(op, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// storeErr classifies an error coming back from the store.
func storeErr(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{Op: op, Entity: entity, ID: id}
	}
	if errors.Is(err, database.ErrInvalid) {
		return &ValidationError{Op: op, Reason: err.Error()}
	}
	return &StoreError{Op: op, Err: err}
}

func isClassified(err error) bool {
	var ve *ValidationError
	var nf *NotFoundError
	var se *StoreError
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &se)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
