package model

import "errors"

var (
	// ErrNotFound is returned when a lookup by UUID or by createdBy yields no record.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when inbound data violates a validation rule.
	ErrValidation = errors.New("validation error")
	// ErrInvariant is returned when a caller violates a precondition, such as
	// supplying a UUID on create.
	ErrInvariant = errors.New("invariant violation")
	// ErrConflict is returned when an optimistic save loses to a concurrent writer.
	ErrConflict = errors.New("conflict")
)
