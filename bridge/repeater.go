package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/lcmbridge/lcm"
	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/transport"
	"go.viam.com/lcmbridge/translate"
)

// Bus is the source side of a bridge. *lcm.Bus implements it.
type Bus interface {
	Subscribe(channel string, handler lcm.Handler) (*lcm.Subscription, error)
	Unsubscribe(sub *lcm.Subscription) error
	Handle(ctx context.Context) error
	Good() bool
	Err() error
}

// Runner is a started or startable repeater of any message type.
type Runner interface {
	Channel() string
	Topic() string
	// Start advertises the topic and subscribes to the channel. ctx bounds publishing.
	Start(ctx context.Context, bus Bus, node transport.Node) error
	Stats() StatsSnapshot
	Close() error
}

// DecodeFunc decodes the payload of an LCM message.
type DecodeFunc[S any] func(data []byte) (S, error)

// TranslateFunc converts a decoded source record into a target message. It may return a
// usable message together with an error for which translate.IsPartial holds.
type TranslateFunc[S any, T transport.Message] func(src S) (T, error)

// Repeater forwards one LCM channel to the ignition topic of the same name, decoding with a
// DecodeFunc and converting with a TranslateFunc.
type Repeater[S any, T transport.Message] struct {
	id        string
	channel   string
	topic     string
	msgType   string
	decode    DecodeFunc[S]
	translate TranslateFunc[S, T]
	logger    logging.Logger
	stats     *Stats

	mu  sync.Mutex
	ctx context.Context
	bus Bus
	pub transport.Publisher
	sub *lcm.Subscription
}

// NewRepeater returns a repeater from channel to "/" + channel publishing messages of msgType.
func NewRepeater[S any, T transport.Message](
	deps Dependencies,
	msgType string,
	decode DecodeFunc[S],
	translate TranslateFunc[S, T],
) *Repeater[S, T] {
	return &Repeater[S, T]{
		id:        uuid.NewString(),
		channel:   deps.Channel,
		topic:     "/" + deps.Channel,
		msgType:   msgType,
		decode:    decode,
		translate: translate,
		logger:    deps.Logger,
		stats:     newStats(deps.Channel, deps.Metrics),
	}
}

// Channel returns the LCM channel.
func (r *Repeater[S, T]) Channel() string {
	return r.channel
}

// Topic returns the target topic.
func (r *Repeater[S, T]) Topic() string {
	return r.topic
}

// Stats returns the repeater's counters.
func (r *Repeater[S, T]) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// Start advertises the topic, checks that the bus is good and subscribes to the channel, in
// that order. When it fails the topic is unadvertised again and nothing is left subscribed.
func (r *Repeater[S, T]) Start(ctx context.Context, bus Bus, node transport.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return errors.Errorf("repeater for %q already started", r.channel)
	}

	pub, err := node.Advertise(r.topic, r.msgType)
	if err != nil {
		return NewAdvertiseError(r.topic, r.msgType, err)
	}
	if !bus.Good() {
		return multierr.Combine(ErrTransportNotReady, pub.Close())
	}

	r.ctx, r.bus, r.pub = ctx, bus, pub
	sub, err := bus.Subscribe(r.channel, r.handle)
	if err != nil {
		r.ctx, r.bus, r.pub = nil, nil, nil
		return multierr.Combine(errors.Wrapf(err, "subscribing to %q", r.channel), pub.Close())
	}
	r.sub = sub
	r.logger.Infow("repeating", "channel", r.channel, "topic", r.topic, "type", r.msgType, "id", r.id)
	return nil
}

// handle is the bus callback. Nothing escapes it: failures are logged and counted as drops.
func (r *Repeater[S, T]) handle(channel string, data []byte) {
	r.stats.addReceived()
	defer func() {
		if p := recover(); p != nil {
			r.stats.addDropped(dropPanic)
			r.logger.Errorw("translation panicked, dropping message",
				"channel", channel, "panic", fmt.Sprint(p))
		}
	}()

	src, err := r.decode(data)
	if err != nil {
		r.stats.addDropped(dropDecode)
		r.logger.Warnw("cannot decode message, dropping it", "channel", channel, "bytes", len(data), "error", err)
		return
	}

	msg, err := r.translate(src)
	if err != nil {
		if !translate.IsPartial(err) {
			r.stats.addDropped(dropTranslate)
			r.logger.Warnw("cannot translate message, dropping it", "channel", channel, "error", err)
			return
		}
		r.stats.addPartial()
		r.logger.Warnw("publishing partial translation", "channel", channel, "error", err)
	}

	r.mu.Lock()
	ctx, pub := r.ctx, r.pub
	r.mu.Unlock()
	if pub == nil {
		r.stats.addDropped(dropPublish)
		r.logger.Debugw("repeater closed, dropping message", "channel", channel)
		return
	}
	if err := pub.Publish(ctx, msg); err != nil {
		r.stats.addDropped(dropPublish)
		r.logger.Warnw("cannot publish message, dropping it", "topic", r.topic, "error", err)
		return
	}
	r.stats.addPublished()
	r.logger.Debugw("repeated", "channel", channel, "topic", r.topic)
}

// Close unsubscribes from the channel and unadvertises the topic.
func (r *Repeater[S, T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return nil
	}
	err := multierr.Combine(r.bus.Unsubscribe(r.sub), r.pub.Close())
	r.ctx, r.bus, r.pub, r.sub = nil, nil, nil, nil
	return err
}
