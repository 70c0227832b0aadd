package bridge_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.viam.com/test"
	"google.golang.org/protobuf/reflect/protoreflect"

	"go.viam.com/lcmbridge/bridge"
	"go.viam.com/lcmbridge/config"
	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/lcm"
	"go.viam.com/lcmbridge/lcmtypes"
	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/samples"
	"go.viam.com/lcmbridge/testutils/inject"
	"go.viam.com/lcmbridge/transport"
)

const (
	loadRobotChannel = "DRAKE_VIEWER_LOAD_ROBOT"
	drawChannel      = "DRAKE_VIEWER_DRAW"
)

func newMemBus(t *testing.T) *lcm.Bus {
	t.Helper()
	bus, err := lcm.New("memq://", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, bus.Close(), test.ShouldBeNil)
	})
	return bus
}

func publish(t *testing.T, bus *lcm.Bus, channel string, msg lcmtypes.Message) {
	t.Helper()
	data, err := msg.Encode()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bus.Publish(channel, data), test.ShouldBeNil)
}

func handleOne(t *testing.T, bus bridge.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	test.That(t, bus.Handle(ctx), test.ShouldBeNil)
}

func field(msg protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return msg.Get(msg.Descriptor().Fields().ByName(name))
}

func startBridge(
	t *testing.T,
	cfg *config.Config,
	bus bridge.Bus,
	node transport.Node,
	logger logging.Logger,
	opts ...bridge.Option,
) *bridge.Bridge {
	t.Helper()
	b, err := bridge.New(cfg, bus, node, logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Start(context.Background()), test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, b.Close(), test.ShouldBeNil)
	})
	return b
}

func TestBridgeRepeatsLoadRobot(t *testing.T) {
	bus := newMemBus(t)
	node := transport.NewMemoryNode()
	b := startBridge(t, config.Default(), bus, node, logging.NewTestLogger(t))

	msgType, ok := node.Advertised("/" + loadRobotChannel)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, msgType, test.ShouldEqual, ignmsgs.ModelType)
	msgType, ok = node.Advertised("/" + drawChannel)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, msgType, test.ShouldEqual, ignmsgs.PoseVType)

	var got []transport.Delivery
	node.Subscribe("/"+loadRobotChannel, func(d transport.Delivery) { got = append(got, d) })

	publish(t, bus, loadRobotChannel, samples.ChassisFloor())
	handleOne(t, bus)

	test.That(t, len(got), test.ShouldEqual, 1)
	test.That(t, got[0].Topic, test.ShouldEqual, "/"+loadRobotChannel)
	decoded, err := ignmsgs.Unmarshal(got[0].Type, got[0].Data)
	test.That(t, err, test.ShouldBeNil)
	links := field(decoded, "link").List()
	test.That(t, links.Len(), test.ShouldEqual, 1)
	link := links.Get(0).Message()
	test.That(t, field(link, "name").String(), test.ShouldEqual, "chassis_floor")
	visuals := field(link, "visual").List()
	test.That(t, visuals.Len(), test.ShouldEqual, 1)
	box := field(field(visuals.Get(0).Message(), "geometry").Message(), "box").Message()
	test.That(t, field(field(box, "size").Message(), "x").Float(), test.ShouldAlmostEqual, 3.8808, 1e-6)

	repeaters := b.Repeaters()
	test.That(t, len(repeaters), test.ShouldEqual, 2)
	test.That(t, repeaters[0].Channel(), test.ShouldEqual, loadRobotChannel)
	test.That(t, repeaters[0].Topic(), test.ShouldEqual, "/"+loadRobotChannel)
	test.That(t, repeaters[0].Stats(), test.ShouldResemble, bridge.StatsSnapshot{Received: 1, Published: 1})
	test.That(t, repeaters[1].Stats(), test.ShouldResemble, bridge.StatsSnapshot{})
}

func TestBridgeRepeatsDraw(t *testing.T) {
	bus := newMemBus(t)
	node := transport.NewMemoryNode()
	startBridge(t, config.Default(), bus, node, logging.NewTestLogger(t))

	var got []transport.Delivery
	node.Subscribe("/"+drawChannel, func(d transport.Delivery) { got = append(got, d) })

	publish(t, bus, drawChannel, samples.DrawFor(samples.SampleCar(), 1500))
	handleOne(t, bus)

	test.That(t, len(got), test.ShouldEqual, 1)
	decoded, err := ignmsgs.Unmarshal(ignmsgs.PoseVType, got[0].Data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, field(decoded, "pose").List().Len(), test.ShouldEqual, 4)
	stamp := field(field(decoded, "header").Message(), "stamp").Message()
	test.That(t, field(stamp, "sec").Int(), test.ShouldEqual, int64(1))
	test.That(t, field(stamp, "nsec").Int(), test.ShouldEqual, int64(500000000))
}

func TestStartAdvertiseFailure(t *testing.T) {
	bus := newMemBus(t)
	node := inject.NewNode(transport.NewMemoryNode())
	node.AdvertiseFunc = func(topic, msgType string) (transport.Publisher, error) {
		return nil, errors.New("no ignition")
	}

	b, err := bridge.New(config.Default(), bus, node, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = b.Start(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, bridge.IsSetupError(err), test.ShouldBeTrue)

	var advertiseErr *bridge.AdvertiseError
	test.That(t, errors.As(err, &advertiseErr), test.ShouldBeTrue)
	test.That(t, advertiseErr.Topic, test.ShouldEqual, "/"+loadRobotChannel)
	test.That(t, advertiseErr.MsgType, test.ShouldEqual, ignmsgs.ModelType)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no ignition")

	// Nothing was subscribed.
	publish(t, bus, loadRobotChannel, samples.ChassisFloor())
	handleOne(t, bus)
	test.That(t, b.Repeaters()[0].Stats().Received, test.ShouldEqual, uint64(0))
}

func TestStartTransportNotReady(t *testing.T) {
	bus := inject.NewBus(newMemBus(t))
	bus.GoodFunc = func() bool { return false }
	var subscribed int
	bus.SubscribeFunc = func(channel string, handler lcm.Handler) (*lcm.Subscription, error) {
		subscribed++
		return bus.Bus.Subscribe(channel, handler)
	}
	mem := transport.NewMemoryNode()
	node := inject.NewNode(mem)
	var advertised []string
	node.AdvertiseFunc = func(topic, msgType string) (transport.Publisher, error) {
		advertised = append(advertised, topic)
		return mem.Advertise(topic, msgType)
	}

	b, err := bridge.New(config.Default(), bus, node, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = b.Start(context.Background())
	test.That(t, errors.Is(err, bridge.ErrTransportNotReady), test.ShouldBeTrue)
	test.That(t, bridge.IsSetupError(err), test.ShouldBeTrue)
	test.That(t, subscribed, test.ShouldEqual, 0)

	// The topic is advertised before the bus is checked, and released again.
	test.That(t, advertised, test.ShouldResemble, []string{"/" + loadRobotChannel})
	_, ok := mem.Advertised("/" + loadRobotChannel)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestStartSubscribeFailureUnadvertises(t *testing.T) {
	bus := inject.NewBus(newMemBus(t))
	bus.SubscribeFunc = func(channel string, handler lcm.Handler) (*lcm.Subscription, error) {
		return nil, errors.New("no more subscriptions")
	}
	node := transport.NewMemoryNode()
	r := bridge.NewRepeater(
		bridge.Dependencies{Channel: drawChannel, Logger: logging.NewTestLogger(t)},
		ignmsgs.PoseVType,
		lcmtypes.DecodeViewerDraw,
		func(*lcmtypes.ViewerDraw) (*ignmsgs.PoseV, error) { return &ignmsgs.PoseV{}, nil },
	)

	err := r.Start(context.Background(), bus, node)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no more subscriptions")
	_, ok := node.Advertised("/" + drawChannel)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, r.Close(), test.ShouldBeNil)

	// A later attempt starts from scratch.
	bus.SubscribeFunc = nil
	test.That(t, r.Start(context.Background(), bus, node), test.ShouldBeNil)
	_, ok = node.Advertised("/" + drawChannel)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Close(), test.ShouldBeNil)
}

func TestStartFailureClosesStartedRepeaters(t *testing.T) {
	bus := inject.NewBus(newMemBus(t))
	var unsubscribed []string
	bus.UnsubscribeFunc = func(sub *lcm.Subscription) error {
		unsubscribed = append(unsubscribed, sub.Channel())
		return bus.Bus.Unsubscribe(sub)
	}
	node := inject.NewNode(transport.NewMemoryNode())
	node.AdvertiseFunc = func(topic, msgType string) (transport.Publisher, error) {
		if topic == "/"+drawChannel {
			return nil, errors.New("draw refused")
		}
		return node.Node.Advertise(topic, msgType)
	}

	b, err := bridge.New(config.Default(), bus, node, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = b.Start(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "draw refused")
	test.That(t, unsubscribed, test.ShouldResemble, []string{loadRobotChannel})
	test.That(t, b.Close(), test.ShouldBeNil)
	test.That(t, unsubscribed, test.ShouldResemble, []string{loadRobotChannel})
}

func TestDroppedMessages(t *testing.T) {
	bus := newMemBus(t)
	node := transport.NewMemoryNode()
	reg := prometheus.NewRegistry()
	metrics, err := bridge.NewMetrics(reg)
	test.That(t, err, test.ShouldBeNil)
	logger, logs := logging.NewObservedTestLogger(t)
	b := startBridge(t, config.Default(), bus, node, logger, bridge.WithMetrics(metrics))

	var got int
	node.Subscribe("/"+loadRobotChannel, func(transport.Delivery) { got++ })

	// Not an lcmt_viewer_load_robot.
	test.That(t, bus.Publish(loadRobotChannel, []byte("garbage")), test.ShouldBeNil)
	handleOne(t, bus)

	// Decodes, but cannot be translated.
	bad := samples.NewLoadRobot(samples.NewLink("chassis_floor", 0,
		samples.NewGeometry(lcmtypes.GeometryBox, 1, 2)))
	publish(t, bus, loadRobotChannel, bad)
	handleOne(t, bus)

	// Published with the unsupported visual skipped.
	partial := samples.NewLoadRobot(samples.NewLink("chassis_floor", 0,
		samples.NewBox(1, 1, 1), samples.NewGeometry(lcmtypes.GeometryType(42))))
	publish(t, bus, loadRobotChannel, partial)
	handleOne(t, bus)

	test.That(t, got, test.ShouldEqual, 1)
	test.That(t, b.Repeaters()[0].Stats(), test.ShouldResemble,
		bridge.StatsSnapshot{Received: 3, Published: 1, Dropped: 2, Partial: 1})
	test.That(t, logs.FilterMessage("cannot decode message, dropping it").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("cannot translate message, dropping it").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("publishing partial translation").Len(), test.ShouldEqual, 1)

	expected := `
# HELP lcm_bridge_messages_dropped_total Messages dropped per channel and reason.
# TYPE lcm_bridge_messages_dropped_total counter
lcm_bridge_messages_dropped_total{channel="DRAKE_VIEWER_LOAD_ROBOT",reason="decode"} 1
lcm_bridge_messages_dropped_total{channel="DRAKE_VIEWER_LOAD_ROBOT",reason="translate"} 1
# HELP lcm_bridge_messages_partial_total Messages published with skipped visuals per channel.
# TYPE lcm_bridge_messages_partial_total counter
lcm_bridge_messages_partial_total{channel="DRAKE_VIEWER_LOAD_ROBOT"} 1
# HELP lcm_bridge_messages_published_total Translated messages published per channel.
# TYPE lcm_bridge_messages_published_total counter
lcm_bridge_messages_published_total{channel="DRAKE_VIEWER_LOAD_ROBOT"} 1
# HELP lcm_bridge_messages_received_total LCM messages received per channel.
# TYPE lcm_bridge_messages_received_total counter
lcm_bridge_messages_received_total{channel="DRAKE_VIEWER_LOAD_ROBOT"} 3
`
	test.That(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)), test.ShouldBeNil)
}

func TestFailPolicyDropsPartialMessages(t *testing.T) {
	bus := newMemBus(t)
	node := transport.NewMemoryNode()
	cfg := config.Default()
	cfg.Translation.UnsupportedShapePolicy = "fail"
	b := startBridge(t, cfg, bus, node, logging.NewTestLogger(t))

	partial := samples.NewLoadRobot(samples.NewLink("chassis_floor", 0,
		samples.NewBox(1, 1, 1), samples.NewGeometry(lcmtypes.GeometryType(42))))
	publish(t, bus, loadRobotChannel, partial)
	handleOne(t, bus)

	test.That(t, b.Repeaters()[0].Stats(), test.ShouldResemble, bridge.StatsSnapshot{Received: 1, Dropped: 1})
}

func TestPublishFailureIsDropped(t *testing.T) {
	bus := newMemBus(t)
	node := inject.NewNode(transport.NewMemoryNode())
	node.AdvertiseFunc = func(topic, msgType string) (transport.Publisher, error) {
		pub, err := node.Node.Advertise(topic, msgType)
		if err != nil {
			return nil, err
		}
		injected := inject.NewPublisher(pub)
		injected.PublishFunc = func(ctx context.Context, msg transport.Message) error {
			return errors.New("ignition went away")
		}
		return injected, nil
	}
	b := startBridge(t, config.Default(), bus, node, logging.NewTestLogger(t))

	publish(t, bus, loadRobotChannel, samples.ChassisFloor())
	handleOne(t, bus)
	test.That(t, b.Repeaters()[0].Stats(), test.ShouldResemble, bridge.StatsSnapshot{Received: 1, Dropped: 1})
}

func TestRepeaterRecoversPanics(t *testing.T) {
	bus := newMemBus(t)
	node := transport.NewMemoryNode()
	logger, logs := logging.NewObservedTestLogger(t)

	r := bridge.NewRepeater(
		bridge.Dependencies{Channel: drawChannel, Logger: logger},
		ignmsgs.PoseVType,
		lcmtypes.DecodeViewerDraw,
		func(*lcmtypes.ViewerDraw) (*ignmsgs.PoseV, error) {
			panic("boom")
		},
	)
	test.That(t, r.Start(context.Background(), bus, node), test.ShouldBeNil)
	defer func() {
		test.That(t, r.Close(), test.ShouldBeNil)
	}()
	test.That(t, r.Start(context.Background(), bus, node), test.ShouldNotBeNil)

	publish(t, bus, drawChannel, samples.DrawFor(samples.ChassisFloor(), 0))
	handleOne(t, bus)

	test.That(t, r.Stats(), test.ShouldResemble, bridge.StatsSnapshot{Received: 1, Dropped: 1})
	test.That(t, logs.FilterMessage("translation panicked, dropping message").Len(), test.ShouldEqual, 1)
	test.That(t, bus.Good(), test.ShouldBeTrue)
}

func TestRepeaterClose(t *testing.T) {
	bus := newMemBus(t)
	node := transport.NewMemoryNode()
	r := bridge.NewRepeater(
		bridge.Dependencies{Channel: drawChannel, Logger: logging.NewTestLogger(t)},
		ignmsgs.PoseVType,
		lcmtypes.DecodeViewerDraw,
		func(*lcmtypes.ViewerDraw) (*ignmsgs.PoseV, error) { return &ignmsgs.PoseV{}, nil },
	)
	test.That(t, r.Close(), test.ShouldBeNil)
	test.That(t, r.Start(context.Background(), bus, node), test.ShouldBeNil)
	_, ok := node.Advertised("/" + drawChannel)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Close(), test.ShouldBeNil)
	test.That(t, r.Close(), test.ShouldBeNil)
	_, ok = node.Advertised("/" + drawChannel)
	test.That(t, ok, test.ShouldBeFalse)

	publish(t, bus, drawChannel, samples.DrawFor(samples.ChassisFloor(), 0))
	handleOne(t, bus)
	test.That(t, r.Stats().Received, test.ShouldEqual, uint64(0))
}

func TestRun(t *testing.T) {
	t.Run("context canceled", func(t *testing.T) {
		bus := newMemBus(t)
		b := startBridge(t, config.Default(), bus, transport.NewMemoryNode(), logging.NewTestLogger(t),
			bridge.WithStatsInterval(time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- b.Run(ctx)
		}()
		publish(t, bus, loadRobotChannel, samples.ChassisFloor())
		cancel()
		select {
		case err := <-done:
			test.That(t, err, test.ShouldBeNil)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("bus failure", func(t *testing.T) {
		bus := inject.NewBus(newMemBus(t))
		bus.HandleFunc = func(ctx context.Context) error {
			return errors.New("socket gone")
		}
		b := startBridge(t, config.Default(), bus, transport.NewMemoryNode(), logging.NewTestLogger(t))

		err := b.Run(context.Background())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "LCM bus failed")
		test.That(t, err.Error(), test.ShouldContainSubstring, "socket gone")
		test.That(t, bridge.IsSetupError(err), test.ShouldBeFalse)
	})

	t.Run("receiver failed between handles", func(t *testing.T) {
		bus := inject.NewBus(newMemBus(t))
		b := startBridge(t, config.Default(), bus, transport.NewMemoryNode(), logging.NewTestLogger(t))
		bus.GoodFunc = func() bool { return false }
		bus.ErrFunc = func() error { return errors.New("socket gone") }

		err := b.Run(context.Background())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "LCM bus failed")
		test.That(t, err.Error(), test.ShouldContainSubstring, "socket gone")
	})

	t.Run("bus stopped", func(t *testing.T) {
		bus := inject.NewBus(newMemBus(t))
		handled := 0
		bus.GoodFunc = func() bool { return handled < 2 }
		bus.HandleFunc = func(ctx context.Context) error {
			handled++
			return nil
		}
		b := startBridge(t, config.Default(), bus, transport.NewMemoryNode(), logging.NewTestLogger(t))

		test.That(t, b.Run(context.Background()), test.ShouldEqual, bridge.ErrBusStopped)
		test.That(t, handled, test.ShouldEqual, 2)
	})
}

func TestRunLogsStats(t *testing.T) {
	bus := newMemBus(t)
	logger, logs := logging.NewObservedTestLogger(t)
	mockClock := clock.NewMock()
	b := startBridge(t, config.Default(), bus, transport.NewMemoryNode(), logger,
		bridge.WithStatsInterval(time.Minute), bridge.WithClock(mockClock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("repeater stats").Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no stats were logged")
		}
		mockClock.Add(time.Minute)
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	test.That(t, <-done, test.ShouldBeNil)

	stats := logs.FilterMessage("repeater stats")
	test.That(t, stats.FilterField(zap.String("channel", loadRobotChannel)).Len(), test.ShouldBeGreaterThan, 0)
	test.That(t, stats.FilterField(zap.String("channel", drawChannel)).Len(), test.ShouldBeGreaterThan, 0)
}

func TestNewUnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Repeaters = append(cfg.Repeaters, config.RepeaterConfig{Channel: "OTHER", Kind: "teleport"})
	_, err := bridge.New(cfg, newMemBus(t), transport.NewMemoryNode(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown translation kind "teleport"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, config.KindViewerDraw)

	cfg = config.Default()
	cfg.Translation.QuaternionOrder = "zyx"
	_, err = bridge.New(cfg, newMemBus(t), transport.NewMemoryNode(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegistry(t *testing.T) {
	test.That(t, bridge.RegisteredTranslations(), test.ShouldResemble,
		[]string{config.KindViewerDraw, config.KindViewerLoadRobot})

	_, ok := bridge.LookupTranslation(config.KindViewerLoadRobot)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = bridge.LookupTranslation("teleport")
	test.That(t, ok, test.ShouldBeFalse)

	factory := func(deps bridge.Dependencies) (bridge.Runner, error) {
		return bridge.NewRepeater(deps, ignmsgs.PoseVType, lcmtypes.DecodeViewerDraw, deps.Translator.Draw), nil
	}
	test.That(t, func() { bridge.RegisterTranslation(config.KindViewerDraw, factory) }, test.ShouldPanic)
	test.That(t, func() { bridge.RegisterTranslation("teleport", nil) }, test.ShouldPanic)

	bridge.RegisterTranslation("teleport", factory)
	defer bridge.DeregisterTranslation("teleport")
	cfg := config.Default()
	cfg.Repeaters = []config.RepeaterConfig{{Channel: "TELEPORT", Kind: "teleport"}}
	b, err := bridge.New(cfg, newMemBus(t), transport.NewMemoryNode(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Repeaters()[0].Topic(), test.ShouldEqual, "/TELEPORT")
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := bridge.NewMetrics(reg)
	test.That(t, err, test.ShouldBeNil)
	_, err = bridge.NewMetrics(reg)
	test.That(t, err, test.ShouldNotBeNil)
}
