// Package bridge repeats LCM viewer channels onto ignition topics.
//
// A Bridge owns one repeater per configured channel. Every repeater subscribes to its LCM
// channel and publishes each translated message on the topic "/" + channel. Messages are
// dispatched one at a time from Run, so translation and publishing never run concurrently.
package bridge

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/lcmbridge/config"
	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/transport"
	"go.viam.com/lcmbridge/translate"
	"go.viam.com/lcmbridge/utils"
)

// Bridge connects a source bus to a target node.
type Bridge struct {
	bus           Bus
	node          transport.Node
	logger        logging.Logger
	metrics       *Metrics
	statsInterval time.Duration
	clock         clock.Clock

	repeaters []Runner
	started   []Runner
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics mirrors the repeater counters into Prometheus.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithStatsInterval sets how often Run logs the repeater counters. Zero disables it.
func WithStatsInterval(d time.Duration) Option {
	return func(b *Bridge) {
		b.statsInterval = d
	}
}

// WithClock sets the clock the stats ticker runs on.
func WithClock(c clock.Clock) Option {
	return func(b *Bridge) {
		b.clock = c
	}
}

// New builds the repeaters of cfg. Nothing is subscribed or advertised until Start.
func New(cfg *config.Config, bus Bus, node transport.Node, logger logging.Logger, opts ...Option) (*Bridge, error) {
	b := &Bridge{bus: bus, node: node, logger: logger, clock: clock.New()}
	for _, opt := range opts {
		opt(b)
	}

	translatorOpts, err := cfg.Translation.Options()
	if err != nil {
		return nil, err
	}
	translator := translate.NewTranslator(translatorOpts...)

	for idx, rc := range cfg.Repeaters {
		factory, ok := LookupTranslation(rc.Kind)
		if !ok {
			return nil, errors.Errorf("repeaters.%d: unknown translation kind %q, registered kinds are %v",
				idx, rc.Kind, RegisteredTranslations())
		}
		runner, err := factory(Dependencies{
			Channel:    rc.Channel,
			Translator: translator,
			Logger:     logger.Sublogger(rc.Channel),
			Metrics:    b.metrics,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "repeaters.%d: building %s repeater", idx, rc.Kind)
		}
		b.repeaters = append(b.repeaters, runner)
	}
	return b, nil
}

// Repeaters returns the repeaters in config order.
func (b *Bridge) Repeaters() []Runner {
	return b.repeaters
}

// Start starts every repeater. If one fails the ones already started are closed again and the
// error is returned.
func (b *Bridge) Start(ctx context.Context) error {
	for _, r := range b.repeaters {
		if err := r.Start(ctx, b.bus, b.node); err != nil {
			err = errors.Wrapf(err, "starting repeater for %q", r.Channel())
			return multierr.Combine(err, b.closeStarted())
		}
		b.started = append(b.started, r)
	}
	return nil
}

// Run dispatches messages until ctx is done, which is an orderly exit returning nil, or the
// bus fails, which returns the bus error. A bus that stops without an error returns
// ErrBusStopped.
func (b *Bridge) Run(ctx context.Context) error {
	if b.statsInterval > 0 {
		workers := utils.NewStoppableWorkersWithContext(ctx, b.logStats)
		defer workers.Stop()
	}

	for b.bus.Good() {
		if err := b.bus.Handle(ctx); err != nil {
			if ctx.Err() != nil {
				b.logger.Info("bridge stopping")
				return nil
			}
			return errors.Wrap(err, "LCM bus failed")
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := b.bus.Err(); err != nil {
		return errors.Wrap(err, "LCM bus failed")
	}
	return ErrBusStopped
}

func (b *Bridge) logStats(ctx context.Context) {
	ticker := b.clock.Ticker(b.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, r := range b.started {
			s := r.Stats()
			b.logger.Infow("repeater stats", "channel", r.Channel(),
				"received", s.Received, "published", s.Published, "dropped", s.Dropped, "partial", s.Partial)
		}
	}
}

// Close stops every started repeater. It does not close the bus or the node.
func (b *Bridge) Close() error {
	return b.closeStarted()
}

func (b *Bridge) closeStarted() error {
	var err error
	for _, r := range b.started {
		err = multierr.Combine(err, r.Close())
	}
	b.started = nil
	return err
}
