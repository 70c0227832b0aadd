package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// NewAlreadyRegisteredError is used when a name is registered twice.
func NewAlreadyRegisteredError(kind, name string) error {
	return errors.Errorf("%s %q is already registered", kind, name)
}
