package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
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
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError is returned when an operation is not allowed in the current state of an entity.
type ConflictError struct {
	Msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{Msg: msg}
}

func (err ConflictError) Error() string {
	return err.Msg
}

// StoreError wraps an unexpected failure of the storage layer.
// The operation can be safely retried: nothing was committed.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func (err StoreError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err StoreError) Unwrap() error { return err.Err }

func IsValidationError(err error) bool {
	var (
		ve  *ValidationError
		ves validator.ValidationErrors
	)
	return errors.As(err, &ve) || errors.As(err, &ves)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsClientError reports whether err was caused by the caller's input rather than by the system.
func IsClientError(err error) bool {
	return IsValidationError(err) || IsNotFound(err) || IsConflict(err)
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
