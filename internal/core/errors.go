package core

import "fmt"

type ValidationKind string

const (
	MissingFile     ValidationKind = "missing_file"
	UnsupportedType ValidationKind = "unsupported_type"
	MissingName     ValidationKind = "missing_name"
)

// ValidationError rejects client input before anything reaches the store.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file %s not found", e.ID)
}

// StoreError wraps any persistence failure. The wrapped error is for logs only.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
