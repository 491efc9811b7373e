package tasks

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by read-only queries on a task that was never started.
var ErrNotFound = errors.New("no task yet")

// ValidationError reports malformed input. No state is mutated when it is returned.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// SchedulingError reports a failure to register a job.
type SchedulingError struct {
	Job JobID
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("schedule job %s: %v", e.Job, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// PersistenceError reports a failed store write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsScheduling reports whether err is (or wraps) a SchedulingError.
func IsScheduling(err error) bool {
	var se *SchedulingError
	return errors.As(err, &se)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
