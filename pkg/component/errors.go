package component

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every configuration or validation failure of a component.
	ErrValidation = errors.New("component validation error")
	// ErrLookup is matched by unknown component types, schemas and unresolvable allocations.
	ErrLookup = errors.New("lookup error")
)

// ValidationError is returned when a component configuration cannot be accepted.
type ValidationError struct {
	ComponentID string
	Field       string
	Err         error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("component %s: %v", e.ComponentID, e.Err)
	}
	return fmt.Sprintf("component %s: field %s: %v", e.ComponentID, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func validationErr(componentID, field string, format string, args ...any) *ValidationError {
	return &ValidationError{ComponentID: componentID, Field: field, Err: fmt.Errorf(format, args...)}
}

// ResolutionError is returned when an allocation does not match any attribute in a snapshot.
type ResolutionError struct {
	Entity    string
	Attribute string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("input data %s / %s not found, check the configuration of the inputs, outputs and static data", e.Entity, e.Attribute)
}

func (e *ResolutionError) Unwrap() error {
	return ErrLookup
}

// RunError aborts a single run of a component. No write-backs are produced for that cycle.
type RunError struct {
	ComponentID string
	Field       string
	Err         error
}

func (e *RunError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("run of component %s failed: %v", e.ComponentID, e.Err)
	}
	return fmt.Sprintf("run of component %s failed at %s: %v", e.ComponentID, e.Field, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
