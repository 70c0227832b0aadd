package translate

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/lcmbridge/lcmtypes"
)

// UnsupportedShapeError is returned for a geometry whose kind has no handler.
type UnsupportedShapeError struct {
	Kind lcmtypes.GeometryType
}

// NewUnsupportedShapeError returns an error for a geometry kind the translator cannot express.
func NewUnsupportedShapeError(kind lcmtypes.GeometryType) error {
	return &UnsupportedShapeError{Kind: kind}
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("unsupported geometry type %s", e.Kind)
}

// MalformedInputError is returned when a source record contradicts itself, e.g. a declared
// element count that does not match the data carried.
type MalformedInputError struct {
	Field  string
	Reason string
}

// NewMalformedInputError returns an error describing a malformed field.
func NewMalformedInputError(field, format string, args ...interface{}) error {
	return &MalformedInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Field, e.Reason)
}

// PartialError accompanies a result that was produced with some visuals left out. The result
// returned next to it is complete apart from the skipped entries.
type PartialError struct {
	Skipped []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("skipped %d visual(s): %v", len(e.Skipped), multierr.Combine(e.Skipped...))
}

// Partial reports that a usable result came with this error.
func (e *PartialError) Partial() bool {
	return true
}

// Unwrap exposes the skipped errors to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	return e.Skipped
}

// IsPartial returns whether err only marks a partial result.
func IsPartial(err error) bool {
	var partial interface{ Partial() bool }
	return errors.As(err, &partial) && partial.Partial()
}

func (e *PartialError) add(errs ...error) {
	e.Skipped = append(e.Skipped, errs...)
}

func (e *PartialError) orNil() error {
	if e == nil || len(e.Skipped) == 0 {
		return nil
	}
	return e
}
