package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine boundary.
var (
	// ErrNoAdapter is returned by Open when no adapter was registered
	// under the requested name.
	ErrNoAdapter = errors.New("no engine adapter registered under that name")

	// ErrAdapterExists is returned by Register for a duplicate name.
	ErrAdapterExists = errors.New("engine adapter already registered")
)

// RejectionError wraps an operation refused by the native engine. The
// engine-provided diagnostic text is preserved verbatim; rejected
// operations are never retried.
type RejectionError struct {
	// Op is the operation the engine refused.
	Op string

	// Detail is the engine's diagnostic text.
	Detail string

	// Err is an underlying error, if the binding produced one.
	Err error
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("engine rejected %s: %s", e.Op, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("engine rejected %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine rejected %s", e.Op)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Reject builds a RejectionError for op with the given diagnostic.
func Reject(op, detail string) error {
	return &RejectionError{Op: op, Detail: detail}
}

// RejectErr wraps an underlying binding error as a RejectionError.
func RejectErr(op string, err error) error {
	return &RejectionError{Op: op, Err: err}
}

// IsRejection reports whether err is (or wraps) an engine rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
