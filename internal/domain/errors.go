package domain

import "fmt"

// Error types for consistent error handling across the tracker.

// ErrUnauthorized indicates there is no authenticated owner for the request.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found or is owned by someone else.
// Both cases produce the same error so existence is never leaked.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrParentNotFound is returned when a child item targets a parent that does
// not exist or is not owned by the caller.
type ErrParentNotFound struct {
	Kind Kind
	ID   string
}

func (e *ErrParentNotFound) Error() string {
	return fmt.Sprintf("parent %s not found: %s", e.Kind, e.ID)
}

// ErrNotUnique indicates a name collision on a uniquely named resource.
type ErrNotUnique struct {
	Resource string
	Name     string
}

func (e *ErrNotUnique) Error() string {
	return fmt.Sprintf("%s name is not unique: %s", e.Resource, e.Name)
}

// ErrRecalculation indicates the aggregate totals of a parent could not be
// recomputed after a child write.
type ErrRecalculation struct {
	Kind     Kind
	ParentID string
	Err      error
}

func (e *ErrRecalculation) Error() string {
	return fmt.Sprintf("recalculate %s %s: %v", e.Kind, e.ParentID, e.Err)
}

func (e *ErrRecalculation) Unwrap() error {
	return e.Err
}

// ErrEmptyBatch indicates a batch operation with nothing to apply, or one in
// which no statement matched a row.
type ErrEmptyBatch struct {
	Operation string
}

func (e *ErrEmptyBatch) Error() string {
	return fmt.Sprintf("empty batch: %s", e.Operation)
}

// ErrExternalService indicates a failure in a backing service call (store, cache).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}
