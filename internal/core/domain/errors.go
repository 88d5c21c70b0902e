package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidID  = errors.New("invalid id format")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
	ErrForbidden  = errors.New("access forbidden")
)

// NotFound reports that no document of the given entity has the requested identity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// InvalidID reports a syntactically malformed identity.
func InvalidID(entity string) error {
	return invalidIDError(entity)
}

type invalidIDError string

func (e invalidIDError) Error() string { return "invalid " + string(e) + " id format" }

func (e invalidIDError) Is(target error) bool { return target == ErrInvalidID }

// FieldError is a single violation tied to one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field violation found in one request.
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, ErrValidation, joinFieldErrors(e.Fields))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add records a violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when it holds at least one violation.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError reports unique fields whose value is already taken by another document.
type ConflictError struct {
	Entity string
	Fields []FieldError
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, joinFieldErrors(e.Fields))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Add records a conflicting field.
func (e *ConflictError) Add(field string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: field + " " + ErrConflict.Error()})
}

// OrNil returns e when it holds at least one conflict.
func (e *ConflictError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StoreError wraps a failure of the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func joinFieldErrors(fields []FieldError) string {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}
