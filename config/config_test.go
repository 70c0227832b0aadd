package config

import (
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
	"go.viam.com/test"

	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/translate"
)

func TestRead(t *testing.T) {
	t.Setenv("TEST_LCM_URL", "memq://")
	t.Setenv("TEST_NATS_PORT", "4333")
	logger := logging.NewTestLogger(t)

	cfg, err := Read("data/bridge.json", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "data/bridge.json")
	test.That(t, cfg.LCM.URL, test.ShouldEqual, "memq://")
	test.That(t, cfg.Target.NATSURL, test.ShouldEqual, "nats://127.0.0.1:4333")
	test.That(t, cfg.Target.SubjectPrefix, test.ShouldEqual, "sim")
	test.That(t, cfg.Metrics.Address, test.ShouldEqual, "localhost:9464")
	test.That(t, cfg.Repeaters, test.ShouldResemble, []RepeaterConfig{
		{Channel: "DRAKE_VIEWER_LOAD_ROBOT", Kind: KindViewerLoadRobot},
		{Channel: "DRAKE_VIEWER_DRAW", Kind: KindViewerDraw},
	})
	test.That(t, cfg.LogConfig, test.ShouldResemble, []logging.LoggerPatternConfig{{Pattern: "bridge.*", Level: "debug"}})

	opts, err := cfg.Translation.Options()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, translate.NewTranslator(opts...).Policy(), test.ShouldEqual, translate.PolicyFail)

	_, err = Read("data/missing.json", logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadDefault(t *testing.T) {
	cfg, err := Read("", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
	test.That(t, cfg.Target.Transport, test.ShouldEqual, TransportNATS)
	test.That(t, cfg.Target.NATSURL, test.ShouldEqual, nats.DefaultURL)
	test.That(t, len(cfg.Repeaters), test.ShouldEqual, 2)
	test.That(t, cfg.Repeaters[0].Topic(), test.ShouldEqual, "/DRAKE_VIEWER_LOAD_ROBOT")

	opts, err := cfg.Translation.Options()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, translate.NewTranslator(opts...).Policy(), test.ShouldEqual, translate.PolicySkip)
}

func TestValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, tc := range []struct {
		name   string
		json   string
		errStr string
	}{
		{"bad json", `{"repeaters": [`, "decode"},
		{"no repeaters", `{}`, "repeaters"},
		{"missing channel", `{"repeaters": [{"kind": "viewer_draw"}]}`, "channel"},
		{"missing kind", `{"repeaters": [{"channel": "A"}]}`, "kind"},
		{"bad channel", `{"repeaters": [{"channel": "A B", "kind": "viewer_draw"}]}`, "repeaters.0"},
		{
			"duplicate channel",
			`{"repeaters": [{"channel": "A", "kind": "viewer_draw"}, {"channel": "A", "kind": "viewer_draw"}]}`,
			"repeaters.1",
		},
		{"bad lcm url", `{"lcm": {"url": "tcpq://x"}, "repeaters": [{"channel": "A", "kind": "k"}]}`, "lcm"},
		{"bad transport", `{"target": {"transport": "zmq"}, "repeaters": [{"channel": "A", "kind": "k"}]}`, "zmq"},
		{
			"bad policy",
			`{"translation": {"unsupported_shape_policy": "drop"}, "repeaters": [{"channel": "A", "kind": "k"}]}`,
			"drop",
		},
		{
			"bad order",
			`{"translation": {"quaternion_order": "zyx"}, "repeaters": [{"channel": "A", "kind": "k"}]}`,
			"zyx",
		},
		{"bad metrics", `{"metrics": {"address": "9464"}, "repeaters": [{"channel": "A", "kind": "k"}]}`, "metrics"},
		{"bad log pattern", `{"log": [{"pattern": "a..b", "level": "info"}], "repeaters": [{"channel": "A", "kind": "k"}]}`, "log.0"},
		{"bad log level", `{"log": [{"pattern": "a", "level": "loud"}], "repeaters": [{"channel": "A", "kind": "k"}]}`, "log.0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader("", strings.NewReader(tc.json), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}
}

func TestMemoryTarget(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(
		`{"target": {"transport": "memory"}, "repeaters": [{"channel": "A", "kind": "viewer_draw"}]}`,
	), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Target.NATSURL, test.ShouldEqual, "")
}
