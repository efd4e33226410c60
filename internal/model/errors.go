package model

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError reports bad caller input (direction, columns, CSV header, ...).
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a store read/write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

// ImportError means the import stream itself could not be read.
type ImportError struct {
	Err error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("import: %v", e.Err)
}

func (e ImportError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func IsPersistence(err error) bool {
	var pe PersistenceError
	return errors.As(err, &pe)
}

func IsImport(err error) bool {
	var ie ImportError
	return errors.As(err, &ie)
}
