// Package natsnode publishes ignition topics on NATS. The topic "/a/b" travels on subject
// "<prefix>.a.b" and each message carries its protobuf type in the Ign-Msg-Type header.
package natsnode

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/transport"
)

// Header names set on every published message.
const (
	MessageTypeHeader = "Ign-Msg-Type"
	TopicHeader       = "Ign-Topic"
)

// Node is a transport.Node backed by a NATS connection.
type Node struct {
	conn   *nats.Conn
	logger logging.Logger

	prefix        string
	name          string
	token         string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration

	advertised *transport.Advertisements
}

// Connect dials the NATS server at url.
func Connect(ctx context.Context, url string, logger logging.Logger, opts ...Option) (*Node, error) {
	n := &Node{
		logger:        logger,
		prefix:        DefaultSubjectPrefix,
		name:          "lcm-bridge-" + uuid.NewString(),
		maxReconnects: -1,
		reconnectWait: time.Second,
		timeout:       5 * time.Second,
		advertised:    transport.NewAdvertisements(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	connected := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(url, n.connectionOptions()...)
		if err == nil {
			n.conn = conn
		}
		connected <- err
	}()

	select {
	case err := <-connected:
		if err != nil {
			return nil, errors.Wrapf(err, "connecting to NATS at %s", url)
		}
	case <-ctx.Done():
		go func() {
			if err := <-connected; err == nil {
				n.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
	logger.Infow("connected to NATS", "url", n.conn.ConnectedUrlRedacted(), "name", n.name)
	return n, nil
}

func (n *Node) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(n.name),
		nats.MaxReconnects(n.maxReconnects),
		nats.ReconnectWait(n.reconnectWait),
		nats.Timeout(n.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.logger.Warnw("disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			n.logger.Infow("reconnected to NATS", "url", c.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			n.logger.Debug("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				n.logger.Errorw("NATS subscription error", "subject", sub.Subject, "error", err)
				return
			}
			n.logger.Errorw("NATS error", "error", err)
		}),
	}
	if n.token != "" {
		opts = append(opts, nats.Token(n.token))
	}
	return opts
}

// Subject maps an ignition topic to a NATS subject under prefix.
func Subject(prefix, topic string) (string, error) {
	if err := transport.ValidateTopic(topic); err != nil {
		return "", err
	}
	segments := strings.Split(strings.Trim(topic, "/"), "/")
	for i, s := range segments {
		segments[i] = tokenReplacer.Replace(s)
	}
	return prefix + "." + strings.Join(segments, "."), nil
}

// tokenReplacer removes characters with a meaning in NATS subjects.
var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_")

func validToken(s string) bool {
	return !strings.ContainsAny(s, " \t*>") && !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".") &&
		!strings.Contains(s, "..")
}

// Advertise returns a publisher for topic. The topic stays advertised until every publisher is
// closed.
func (n *Node) Advertise(topic, msgType string) (transport.Publisher, error) {
	subject, err := Subject(n.prefix, topic)
	if err != nil {
		return nil, err
	}
	if n.conn.IsClosed() {
		return nil, transport.ErrClosed
	}

	if err := n.advertised.Add(topic, msgType); err != nil {
		return nil, err
	}
	n.logger.Debugw("advertised", "topic", topic, "subject", subject, "type", msgType)
	return &publisher{node: n, topic: topic, subject: subject, msgType: msgType}, nil
}

// Subscribe calls fn for each message published on topic.
func (n *Node) Subscribe(topic string, fn func(transport.Delivery)) (*nats.Subscription, error) {
	subject, err := Subject(n.prefix, topic)
	if err != nil {
		return nil, err
	}
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		fn(transport.Delivery{Topic: topic, Type: msg.Header.Get(MessageTypeHeader), Data: msg.Data})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing to %s", subject)
	}
	return sub, nil
}

// Flush waits until the server has processed everything published so far.
func (n *Node) Flush(ctx context.Context) error {
	return n.conn.FlushWithContext(ctx)
}

// Close drains pending publications and closes the connection.
func (n *Node) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	if err := n.conn.Flush(); err != nil {
		n.logger.Debugw("flushing NATS connection", "error", err)
	}
	n.conn.Close()
	return nil
}

// Advertised returns the type topic is advertised with.
func (n *Node) Advertised(topic string) (string, bool) {
	return n.advertised.Type(topic)
}

type publisher struct {
	node    *Node
	topic   string
	subject string
	msgType string
	closed  atomic.Bool
}

func (p *publisher) Topic() string       { return p.topic }
func (p *publisher) MessageType() string { return p.msgType }

func (p *publisher) Publish(ctx context.Context, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed.Load() {
		return transport.ErrClosed
	}
	if err := transport.CheckType(p, msg); err != nil {
		return err
	}
	data, err := msg.Marshal()
	if err != nil {
		return errors.Wrapf(err, "encoding %s for %q", msg.MessageType(), p.topic)
	}

	out := nats.NewMsg(p.subject)
	out.Header.Set(MessageTypeHeader, p.msgType)
	out.Header.Set(TopicHeader, p.topic)
	out.Data = data
	if err := p.node.conn.PublishMsg(out); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return transport.ErrClosed
		}
		return errors.Wrapf(err, "publishing on %s", p.subject)
	}
	return nil
}

func (p *publisher) Close() error {
	if !p.closed.Swap(true) {
		p.node.advertised.Release(p.topic)
		p.node.logger.Debugw("unadvertised", "topic", p.topic, "subject", p.subject)
	}
	return nil
}
