package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when the caller supplied an out-of-contract value.
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

// PersistenceError is returned when the store was unreachable or failed.
// Every write is an idempotent upsert or insert, so the failed operation is safe to retry.
// It does not implement Cause() so that errors.Cause stops on it.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(err error, op string) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (err PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err PersistenceError) Unwrap() error { return err.Err }

// ConflictError is returned when a write would break a uniqueness or immutability rule.
type ConflictError struct {
	Msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{Msg: msg}
}

func (err ConflictError) Error() string {
	return err.Msg
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsPersistence(err error) bool {
	_, ok := errors.Cause(err).(*PersistenceError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
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
