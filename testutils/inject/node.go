package inject

import (
	"context"

	"go.viam.com/lcmbridge/transport"
)

// Node is an injected target node.
type Node struct {
	transport.Node
	AdvertiseFunc func(topic, msgType string) (transport.Publisher, error)
	CloseFunc     func() error
}

// NewNode returns a new injected node wrapping node, which may be nil when every func is
// injected.
func NewNode(node transport.Node) *Node {
	return &Node{Node: node}
}

// Advertise calls the injected Advertise or the real version.
func (n *Node) Advertise(topic, msgType string) (transport.Publisher, error) {
	if n.AdvertiseFunc == nil {
		return n.Node.Advertise(topic, msgType)
	}
	return n.AdvertiseFunc(topic, msgType)
}

// Close calls the injected Close or the real version.
func (n *Node) Close() error {
	if n.CloseFunc == nil {
		return n.Node.Close()
	}
	return n.CloseFunc()
}

// Publisher is an injected publisher.
type Publisher struct {
	transport.Publisher
	PublishFunc func(ctx context.Context, msg transport.Message) error
}

// NewPublisher returns a new injected publisher wrapping pub.
func NewPublisher(pub transport.Publisher) *Publisher {
	return &Publisher{Publisher: pub}
}

// Publish calls the injected Publish or the real version.
func (p *Publisher) Publish(ctx context.Context, msg transport.Message) error {
	if p.PublishFunc == nil {
		return p.Publisher.Publish(ctx, msg)
	}
	return p.PublishFunc(ctx, msg)
}
