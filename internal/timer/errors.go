package timer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition      = errors.New("invalid timer transition")
	ErrConflictingActiveTimer = errors.New("an active timer already exists for this team")
	ErrInvalidInput           = errors.New("invalid input")
	ErrPersistence            = errors.New("persistence failure")

	// ErrNotFound is returned by stores when an id does not exist.
	ErrNotFound = errors.New("entry not found")
)

// PersistenceError wraps a store failure. errors.Is matches both
// ErrPersistence and the underlying store error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func invalidTransition(op string, s State) error {
	return fmt.Errorf("%s while %s: %w", op, s, ErrInvalidTransition)
}
