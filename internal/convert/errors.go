package convert

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes conversion failures.
type ErrorKind string

const (
	// KindInput marks an unreadable or undecodable input. Fatal for the input.
	KindInput ErrorKind = "INPUT"

	// KindStructure marks a configuration that could not be reconstructed.
	KindStructure ErrorKind = "STRUCTURE"

	// KindQuantity marks an energy, temperature or stress field that could not be read.
	KindQuantity ErrorKind = "QUANTITY"

	// KindAttribute marks a program or passthrough field that could not be stored.
	KindAttribute ErrorKind = "ATTRIBUTE"

	// KindWorkflow marks a workflow field that was omitted.
	KindWorkflow ErrorKind = "WORKFLOW"
)

// Error describes one failure while converting a record.
// Every kind except KindInput is recovered locally.
type Error struct {
	Kind ErrorKind

	// Record is the input position of the record, or -1.
	Record int

	// Field is the record key involved, if any.
	Field string

	// Index is the position within a multi-valued field, or -1.
	Index int

	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Record >= 0 {
		msg += fmt.Sprintf(": record %d", e.Record)
	}
	if e.Field != "" {
		msg += ": " + e.Field
		if e.Index >= 0 {
			msg += fmt.Sprintf("[%d]", e.Index)
		}
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a conversion Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// NewInputError wraps a load failure.
func NewInputError(path string, err error) *Error {
	return &Error{Kind: KindInput, Record: -1, Field: path, Index: -1, Err: err}
}
