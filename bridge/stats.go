package bridge

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Reasons a message is dropped, used as the "reason" metric label.
const (
	dropDecode    = "decode"
	dropTranslate = "translate"
	dropPublish   = "publish"
	dropPanic     = "panic"
)

// Metrics are the Prometheus counters of all repeaters, labelled by channel.
type Metrics struct {
	received  *prometheus.CounterVec
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	partial   *prometheus.CounterVec
}

// NewMetrics creates the repeater counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lcm_bridge",
			Name:      name,
			Help:      help,
		}, append([]string{"channel"}, labels...))
	}
	m := &Metrics{
		received:  counter("messages_received_total", "LCM messages received per channel."),
		published: counter("messages_published_total", "Translated messages published per channel."),
		dropped:   counter("messages_dropped_total", "Messages dropped per channel and reason.", "reason"),
		partial:   counter("messages_partial_total", "Messages published with skipped visuals per channel."),
	}
	for _, c := range []prometheus.Collector{m.received, m.published, m.dropped, m.partial} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering bridge metrics")
		}
	}
	return m, nil
}

// StatsSnapshot is a point in time copy of a repeater's counters.
type StatsSnapshot struct {
	Received  uint64
	Published uint64
	Dropped   uint64
	Partial   uint64
}

// Stats counts what happened to the messages of one repeater. Metrics may be nil.
type Stats struct {
	channel string
	metrics *Metrics

	received  atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
	partial   atomic.Uint64
}

func newStats(channel string, metrics *Metrics) *Stats {
	return &Stats{channel: channel, metrics: metrics}
}

func (s *Stats) addReceived() {
	s.received.Add(1)
	if s.metrics != nil {
		s.metrics.received.WithLabelValues(s.channel).Inc()
	}
}

func (s *Stats) addPublished() {
	s.published.Add(1)
	if s.metrics != nil {
		s.metrics.published.WithLabelValues(s.channel).Inc()
	}
}

func (s *Stats) addDropped(reason string) {
	s.dropped.Add(1)
	if s.metrics != nil {
		s.metrics.dropped.WithLabelValues(s.channel, reason).Inc()
	}
}

func (s *Stats) addPartial() {
	s.partial.Add(1)
	if s.metrics != nil {
		s.metrics.partial.WithLabelValues(s.channel).Inc()
	}
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received:  s.received.Load(),
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Partial:   s.partial.Load(),
	}
}
