package patient

import (
	"fmt"
	"strings"
)

// FieldError describes one violated constraint.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ValidationError is returned when a patient record breaks one or more
// field constraints. Nothing is persisted when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError is returned when no patient has the requested id. ValidIDs
// lists the ids present at the time of the lookup.
type NotFoundError struct {
	ID       string
	ValidIDs []string
}

func (e *NotFoundError) Error() string {
	if len(e.ValidIDs) == 0 {
		return fmt.Sprintf("Patient %q not found. No patients are stored yet", e.ID)
	}
	return fmt.Sprintf("Patient %q not found. Try valid ID like: %s", e.ID, strings.Join(e.ValidIDs, ", "))
}

// ConflictError is returned when creating a patient whose id is taken.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Patient %q already exists", e.ID)
}

// InvalidArgumentError is returned for unsupported sort parameters.
type InvalidArgumentError struct {
	Argument string
	Value    string
	Allowed  []string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q: use one of %s", e.Argument, e.Value, strings.Join(e.Allowed, ", "))
}

// StorageError wraps a failure to read, parse or write the patient store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("patient store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
