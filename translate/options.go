package translate

import (
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/lcmbridge/lcmtypes"
)

// UnsupportedShapePolicy decides what happens to a link or model containing a geometry kind
// without a handler.
type UnsupportedShapePolicy string

const (
	// PolicySkip omits the visual and reports a PartialError next to the result.
	PolicySkip UnsupportedShapePolicy = "skip"
	// PolicyFail fails the whole message.
	PolicyFail UnsupportedShapePolicy = "fail"
)

// ParseUnsupportedShapePolicy parses a config value. The empty string means PolicySkip.
func ParseUnsupportedShapePolicy(s string) (UnsupportedShapePolicy, error) {
	switch p := UnsupportedShapePolicy(strings.ToLower(s)); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyFail:
		return p, nil
	default:
		return "", errors.Errorf("unknown unsupported shape policy %q, expected %q or %q", s, PolicySkip, PolicyFail)
	}
}

// QuaternionOrder is the component order of a source quaternion.
type QuaternionOrder string

const (
	// OrderWXYZ puts the scalar first. This is what Drake publishes.
	OrderWXYZ QuaternionOrder = "wxyz"
	// OrderXYZW puts the scalar last.
	OrderXYZW QuaternionOrder = "xyzw"
)

// ParseQuaternionOrder parses a config value. The empty string means OrderWXYZ.
func ParseQuaternionOrder(s string) (QuaternionOrder, error) {
	switch o := QuaternionOrder(strings.ToLower(s)); o {
	case "":
		return OrderWXYZ, nil
	case OrderWXYZ, OrderXYZW:
		return o, nil
	default:
		return "", errors.Errorf("unknown quaternion order %q, expected %q or %q", s, OrderWXYZ, OrderXYZW)
	}
}

// Option configures a Translator.
type Option func(*Translator)

// WithUnsupportedShapePolicy sets the policy for unsupported geometry kinds.
func WithUnsupportedShapePolicy(p UnsupportedShapePolicy) Option {
	return func(t *Translator) {
		t.policy = p
	}
}

// WithQuaternionOrder sets the component order of source quaternions.
func WithQuaternionOrder(o QuaternionOrder) Option {
	return func(t *Translator) {
		t.order = o
	}
}

func withShapeHandlers(handlers map[lcmtypes.GeometryType]shapeHandler) Option {
	return func(t *Translator) {
		t.handlers = handlers
	}
}
