package bridge

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrTransportNotReady is returned when a repeater starts on a bus that cannot deliver messages.
var ErrTransportNotReady = errors.New("LCM transport not ready")

// ErrBusStopped is returned by Run when the bus stops being good without reporting an error.
var ErrBusStopped = errors.New("LCM bus stopped")

// AdvertiseError is returned when the target node refuses to advertise a topic.
type AdvertiseError struct {
	Topic   string
	MsgType string
	Err     error
}

// NewAdvertiseError returns an AdvertiseError.
func NewAdvertiseError(topic, msgType string, err error) error {
	return &AdvertiseError{Topic: topic, MsgType: msgType, Err: err}
}

func (e *AdvertiseError) Error() string {
	return fmt.Sprintf("advertising %s on %q: %v", e.MsgType, e.Topic, e.Err)
}

func (e *AdvertiseError) Unwrap() error {
	return e.Err
}

// IsSetupError returns whether err stopped a bridge from starting, as opposed to a failure
// while running.
func IsSetupError(err error) bool {
	var advertise *AdvertiseError
	return errors.As(err, &advertise) || errors.Is(err, ErrTransportNotReady)
}
