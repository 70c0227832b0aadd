// Package lcm is a client for the LCM publish/subscribe bus. It speaks the LCM UDP multicast
// wire protocol (udpm://) and provides an in-process bus (memq://) for tests and tools.
//
// Received messages are queued by a background reader and dispatched to handlers only from
// Handle, so handlers run sequentially on the caller's goroutine in arrival order.
package lcm

import (
	"context"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/utils"
)

// ErrClosed is returned when using a closed bus.
var ErrClosed = errors.New("LCM bus closed")

// DefaultQueueSize is how many complete messages may wait for Handle.
const DefaultQueueSize = 1024

// Message is a complete message received on a channel.
type Message struct {
	Channel string
	Data    []byte
}

// Handler receives the messages of a subscription. The data is owned by the handler.
type Handler func(channel string, data []byte)

// Subscription is a registered handler.
type Subscription struct {
	id      string
	channel string
	re      *regexp.Regexp
	handler Handler
}

// Channel returns the channel pattern the subscription was made with.
func (s *Subscription) Channel() string {
	return s.channel
}

// Bus is a connection to an LCM bus.
type Bus struct {
	url    *URL
	prov   provider
	logger logging.Logger

	seqno   atomic.Uint32
	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   []*Subscription

	incoming chan Message
	failed   chan struct{}
	err      error
	closed   atomic.Bool
	workers  utils.StoppableWorkers

	malformedPackets atomic.Int64
}

// New opens the bus named by rawURL; the empty string resolves through ResolveURL.
func New(rawURL string, logger logging.Logger) (*Bus, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	prov, err := newProvider(u)
	if err != nil {
		return nil, err
	}
	return newBus(u, prov, logger), nil
}

func newBus(u *URL, prov provider, logger logging.Logger) *Bus {
	b := &Bus{
		url:      u,
		prov:     prov,
		logger:   logger,
		incoming: make(chan Message, DefaultQueueSize),
		failed:   make(chan struct{}),
	}
	b.workers = utils.NewStoppableWorkers(b.receive)
	logger.Debugw("LCM bus open", "url", u.String())
	return b
}

// URL returns the URL the bus was opened with.
func (b *Bus) URL() *URL {
	return b.url
}

func (b *Bus) receive(ctx context.Context) {
	assembler := newReassembler()
	for {
		pkt, sender, err := b.prov.read()
		if err != nil {
			if !b.closed.Load() {
				b.err = errors.Wrap(err, "receiving LCM datagram")
				b.logger.Errorw("LCM receive failed", "error", err)
			}
			close(b.failed)
			return
		}

		msg, frag, err := decodePacket(pkt)
		if err == nil && frag != nil {
			msg, err = assembler.add(sender, frag)
		}
		if err != nil {
			b.malformedPackets.Add(1)
			b.logger.Debugw("dropping LCM datagram", "sender", sender, "error", err)
			continue
		}
		if msg == nil {
			continue
		}

		select {
		case b.incoming <- *msg:
		case <-ctx.Done():
			close(b.failed)
			return
		}
	}
}

// Subscribe registers handler for every channel fully matching the regular expression channel.
func (b *Bus) Subscribe(channel string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("nil LCM handler")
	}
	re, err := regexp.Compile("^(?:" + channel + ")$")
	if err != nil {
		return nil, errors.Wrapf(err, "bad channel pattern %q", channel)
	}
	sub := &Subscription{id: uuid.NewString(), channel: channel, re: re, handler: handler}

	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Unsubscribe removes a subscription. Removing an unknown subscription is an error.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("no subscription %s on channel %q", sub.id, sub.channel)
}

// Publish sends data on channel, fragmenting it if it does not fit in one datagram.
func (b *Bus) Publish(channel string, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	packets, err := encodePackets(b.seqno.Add(1)-1, channel, data)
	if err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	for _, pkt := range packets {
		if err := b.prov.write(pkt); err != nil {
			return errors.Wrapf(err, "publishing on %q", channel)
		}
	}
	return nil
}

// Handle waits for one message and dispatches it to every matching subscription. It returns
// ctx.Err() when ctx is done first, and an error once the bus can no longer receive.
func (b *Bus) Handle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case msg := <-b.incoming:
		b.dispatch(msg)
		return nil
	case <-b.failed:
		// Drain what arrived before the failure.
		select {
		case msg := <-b.incoming:
			b.dispatch(msg)
			return nil
		default:
		}
		if b.closed.Load() {
			return ErrClosed
		}
		return b.err
	}
}

func (b *Bus) dispatch(msg Message) {
	b.subsMu.Lock()
	var matched []*Subscription
	for _, s := range b.subs {
		if s.re.MatchString(msg.Channel) {
			matched = append(matched, s)
		}
	}
	b.subsMu.Unlock()

	for i, s := range matched {
		data := msg.Data
		if i < len(matched)-1 {
			data = append([]byte(nil), data...)
		}
		s.handler(msg.Channel, data)
	}
}

// Good reports whether the bus can still deliver messages.
func (b *Bus) Good() bool {
	if b.closed.Load() {
		return false
	}
	select {
	case <-b.failed:
		return false
	default:
		return true
	}
}

// Err returns the error that stopped the receiver. It is nil while the bus is good and after
// Close.
func (b *Bus) Err() error {
	select {
	case <-b.failed:
		return b.err
	default:
		return nil
	}
}

// MalformedPackets returns how many datagrams were dropped as unparseable.
func (b *Bus) MalformedPackets() int64 {
	return b.malformedPackets.Load()
}

// Close stops receiving and releases the network resources.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	err := b.prov.close()
	b.workers.Stop()
	return err
}
