package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing resource without leaking storage details.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err *NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// AdmissionError is returned when a principal may not perform an action in the current state
// (locked module, incomplete profile, retake cooldown, role mismatch).
// Reason is machine-readable so clients can render guidance.
type AdmissionError struct {
	Reason  string
	Message string
	Detail  interface{}
}

func NewAdmissionError(reason, msg string, detail interface{}) error {
	return &AdmissionError{Reason: reason, Message: msg, Detail: detail}
}

func (err *AdmissionError) Error() string {
	return err.Message
}

func AsAdmissionError(err error) (*AdmissionError, bool) {
	var ae *AdmissionError
	ok := errors.As(err, &ae)
	return ae, ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
