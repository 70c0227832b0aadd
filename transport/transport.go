// Package transport defines the target side of the bridge: nodes that advertise ignition topics
// and publishers that send protobuf encoded messages on them.
package transport

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"
)

// Message is a record that can be published on an ignition topic.
type Message interface {
	// MessageType returns the fully qualified protobuf type, e.g. "ignition.msgs.Model".
	MessageType() string
	Marshal() ([]byte, error)
}

// Node advertises topics on a pub/sub transport.
type Node interface {
	// Advertise declares that messages of msgType will be published on topic.
	Advertise(topic, msgType string) (Publisher, error)
	Close() error
}

// Publisher publishes on one advertised topic.
type Publisher interface {
	Topic() string
	MessageType() string
	Publish(ctx context.Context, msg Message) error
	// Close releases the advertisement. The topic is unadvertised once its last publisher is
	// closed; publishing afterwards returns ErrClosed.
	Close() error
}

// ErrClosed is returned when publishing through a closed node.
var ErrClosed = errors.New("transport node closed")

// ErrInvalidTopic is wrapped by topic validation errors.
var ErrInvalidTopic = errors.New("invalid topic")

// ValidateTopic checks a topic against the ignition transport naming rules.
func ValidateTopic(topic string) error {
	switch {
	case topic == "", topic == "/":
		return errors.Wrapf(ErrInvalidTopic, "%q", topic)
	case strings.ContainsFunc(topic, unicode.IsSpace):
		return errors.Wrapf(ErrInvalidTopic, "%q contains whitespace", topic)
	case strings.ContainsAny(topic, "@~"):
		return errors.Wrapf(ErrInvalidTopic, "%q contains '@' or '~'", topic)
	case strings.Contains(topic, "//"):
		return errors.Wrapf(ErrInvalidTopic, "%q contains an empty segment", topic)
	case strings.Contains(topic, ":="):
		return errors.Wrapf(ErrInvalidTopic, "%q contains ':='", topic)
	}
	return nil
}

// CheckType returns an error when msg is not of the type a publisher was advertised with.
func CheckType(p Publisher, msg Message) error {
	if msg.MessageType() != p.MessageType() {
		return errors.Errorf("topic %q carries %s, not %s", p.Topic(), p.MessageType(), msg.MessageType())
	}
	return nil
}

// Advertisements tracks the type each topic is advertised with and how many publishers hold it.
type Advertisements struct {
	mu     sync.Mutex
	topics map[string]*advertisement
}

type advertisement struct {
	msgType    string
	publishers int
}

// NewAdvertisements returns an empty table.
func NewAdvertisements() *Advertisements {
	return &Advertisements{topics: map[string]*advertisement{}}
}

// Add records another publisher of msgType on topic. A topic carries a single type.
func (a *Advertisements) Add(topic, msgType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	adv, ok := a.topics[topic]
	if !ok {
		a.topics[topic] = &advertisement{msgType: msgType, publishers: 1}
		return nil
	}
	if adv.msgType != msgType {
		return errors.Errorf("topic %q already advertised with type %s", topic, adv.msgType)
	}
	adv.publishers++
	return nil
}

// Release drops one publisher of topic and forgets the topic after the last one.
func (a *Advertisements) Release(topic string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	adv, ok := a.topics[topic]
	if !ok {
		return
	}
	adv.publishers--
	if adv.publishers <= 0 {
		delete(a.topics, topic)
	}
}

// Type returns the type topic is advertised with.
func (a *Advertisements) Type(topic string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	adv, ok := a.topics[topic]
	if !ok {
		return "", false
	}
	return adv.msgType, true
}
