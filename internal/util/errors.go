package util

import (
	"errors"
	"fmt"
)

// Error kinds used across the session and grading services. Validation and
// state errors go straight back to the caller; transient IO errors are
// retryable; grading data errors are isolated per question and never abort a
// whole submission.

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return e.Msg }

func NewStateError(format string, args ...interface{}) error {
	return &StateError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientIOError) Unwrap() error { return e.Err }

func NewTransientIOError(op string, err error) error {
	return &TransientIOError{Op: op, Err: err}
}

// GradingDataError marks a malformed question/answer pairing. The affected
// item is graded as incorrect and the rest of the submission proceeds.
type GradingDataError struct {
	QuestionID uint
	Err        error
}

func (e *GradingDataError) Error() string {
	return fmt.Sprintf("grading data error for question %d: %v", e.QuestionID, e.Err)
}
func (e *GradingDataError) Unwrap() error { return e.Err }

func NewGradingDataError(questionID uint, err error) error {
	return &GradingDataError{QuestionID: questionID, Err: err}
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsStateError(err error) bool {
	var s *StateError
	return errors.As(err, &s)
}

func IsNotFoundError(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsTransientIOError(err error) bool {
	var t *TransientIOError
	return errors.As(err, &t)
}
