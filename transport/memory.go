package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Delivery is a message received from a MemoryNode.
type Delivery struct {
	Topic string
	Type  string
	Data  []byte
}

// MemoryNode is an in-process Node. Subscribers receive every publication synchronously.
type MemoryNode struct {
	mu          sync.Mutex
	closed      bool
	advertised  *Advertisements
	subscribers map[string]map[string]func(Delivery)
}

// NewMemoryNode returns an empty in-process node.
func NewMemoryNode() *MemoryNode {
	return &MemoryNode{
		advertised:  NewAdvertisements(),
		subscribers: map[string]map[string]func(Delivery){},
	}
}

// Advertise registers topic. Advertising a topic again with the same type returns another
// publisher; a different type is an error. The topic stays advertised until every publisher
// is closed.
func (n *MemoryNode) Advertise(topic, msgType string) (Publisher, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	if err := n.advertised.Add(topic, msgType); err != nil {
		return nil, err
	}
	return &memoryPublisher{node: n, topic: topic, msgType: msgType}, nil
}

// Advertised returns the type topic is advertised with.
func (n *MemoryNode) Advertised(topic string) (string, bool) {
	return n.advertised.Type(topic)
}

// Subscribe calls fn for every message published on topic until the returned function is called.
func (n *MemoryNode) Subscribe(topic string, fn func(Delivery)) (unsubscribe func()) {
	id := uuid.NewString()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subscribers[topic] == nil {
		n.subscribers[topic] = map[string]func(Delivery){}
	}
	n.subscribers[topic][id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers[topic], id)
	}
}

func (n *MemoryNode) deliver(d Delivery) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	subs := make([]func(Delivery), 0, len(n.subscribers[d.Topic]))
	for _, fn := range n.subscribers[d.Topic] {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(d)
	}
	return nil
}

// Close stops all publishing.
func (n *MemoryNode) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

type memoryPublisher struct {
	node    *MemoryNode
	topic   string
	msgType string
	closed  atomic.Bool
}

func (p *memoryPublisher) Topic() string       { return p.topic }
func (p *memoryPublisher) MessageType() string { return p.msgType }

func (p *memoryPublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed.Load() {
		return ErrClosed
	}
	if err := CheckType(p, msg); err != nil {
		return err
	}
	data, err := msg.Marshal()
	if err != nil {
		return errors.Wrapf(err, "encoding %s for %q", msg.MessageType(), p.topic)
	}
	return p.node.deliver(Delivery{Topic: p.topic, Type: p.msgType, Data: data})
}

func (p *memoryPublisher) Close() error {
	if !p.closed.Swap(true) {
		p.node.advertised.Release(p.topic)
	}
	return nil
}
