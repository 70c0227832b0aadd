package natsnode

import (
	"time"

	"github.com/pkg/errors"
)

// DefaultSubjectPrefix is prepended to every topic.
const DefaultSubjectPrefix = "ign"

// Option configures a Node.
type Option func(*Node) error

// WithSubjectPrefix sets the subject prefix topics are mapped under.
func WithSubjectPrefix(prefix string) Option {
	return func(n *Node) error {
		if prefix == "" || !validToken(prefix) {
			return errors.Errorf("invalid subject prefix %q", prefix)
		}
		n.prefix = prefix
		return nil
	}
}

// WithName sets the client name reported to the server.
func WithName(name string) Option {
	return func(n *Node) error {
		n.name = name
		return nil
	}
}

// WithMaxReconnects sets the maximum number of reconnection attempts (-1 for infinite).
func WithMaxReconnects(max int) Option {
	return func(n *Node) error {
		n.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(n *Node) error {
		n.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Node) error {
		n.timeout = d
		return nil
	}
}

// WithToken authenticates with a token.
func WithToken(token string) Option {
	return func(n *Node) error {
		n.token = token
		return nil
	}
}
