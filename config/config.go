// Package config defines the bridge's configuration file.
package config

import (
	"fmt"
	"net"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/lcmbridge/lcm"
	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/transport"
	"go.viam.com/lcmbridge/translate"
)

// Translation kinds with built in support.
const (
	KindViewerLoadRobot = "viewer_load_robot"
	KindViewerDraw      = "viewer_draw"
)

// Target transports.
const (
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

// Config describes how to run a bridge.
type Config struct {
	ConfigFilePath string `json:"-"`

	LCM         LCMConfig                     `json:"lcm"`
	Target      TargetConfig                  `json:"target"`
	Translation TranslationConfig             `json:"translation"`
	Repeaters   []RepeaterConfig              `json:"repeaters"`
	Metrics     MetricsConfig                 `json:"metrics"`
	LogConfig   []logging.LoggerPatternConfig `json:"log,omitempty"`
	Debug       bool                          `json:"debug,omitempty"`
}

// LCMConfig selects the source bus.
type LCMConfig struct {
	// URL is an LCM URL; empty means LCM_DEFAULT_URL or the LCM default.
	URL string `json:"url,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *LCMConfig) Validate(path string) error {
	if c.URL == "" {
		return nil
	}
	if _, err := lcm.ParseURL(c.URL); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// TargetConfig selects the transport translated messages are published on.
type TargetConfig struct {
	Transport     string `json:"transport,omitempty"`
	NATSURL       string `json:"nats_url,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
	ClientName    string `json:"client_name,omitempty"`
	// RecordPath, when set, also appends every publication to this file.
	RecordPath string `json:"record_path,omitempty"`
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *TargetConfig) Validate(path string) error {
	switch c.Transport {
	case "":
		c.Transport = TransportNATS
	case TransportNATS, TransportMemory:
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("unknown transport %q, expected %q or %q", c.Transport, TransportNATS, TransportMemory))
	}
	if c.Transport == TransportNATS && c.NATSURL == "" {
		c.NATSURL = nats.DefaultURL
	}
	return nil
}

// TranslationConfig holds the translator options.
type TranslationConfig struct {
	UnsupportedShapePolicy string `json:"unsupported_shape_policy,omitempty"`
	QuaternionOrder        string `json:"quaternion_order,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *TranslationConfig) Validate(path string) error {
	if _, err := translate.ParseUnsupportedShapePolicy(c.UnsupportedShapePolicy); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := translate.ParseQuaternionOrder(c.QuaternionOrder); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Options returns the translator options the config describes.
func (c *TranslationConfig) Options() ([]translate.Option, error) {
	policy, err := translate.ParseUnsupportedShapePolicy(c.UnsupportedShapePolicy)
	if err != nil {
		return nil, err
	}
	order, err := translate.ParseQuaternionOrder(c.QuaternionOrder)
	if err != nil {
		return nil, err
	}
	return []translate.Option{
		translate.WithUnsupportedShapePolicy(policy),
		translate.WithQuaternionOrder(order),
	}, nil
}

// RepeaterConfig forwards one LCM channel to the topic "/" + Channel.
type RepeaterConfig struct {
	Channel string `json:"channel"`
	Kind    string `json:"kind"`
}

// Topic returns the target topic.
func (c RepeaterConfig) Topic() string {
	return "/" + c.Channel
}

// Validate ensures all parts of the config are valid.
func (c *RepeaterConfig) Validate(path string) error {
	if c.Channel == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "channel")
	}
	if len(c.Channel) > lcm.MaxChannelLength {
		return utils.NewConfigValidationError(path,
			errors.Errorf("channel %q is longer than %d bytes", c.Channel, lcm.MaxChannelLength))
	}
	if err := transport.ValidateTopic(c.Topic()); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.Kind == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "kind")
	}
	return nil
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address to serve /metrics on, e.g. "localhost:9464". Empty disables the endpoint.
	Address string `json:"address,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *MetricsConfig) Validate(path string) error {
	if c.Address == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "address"))
	}
	return nil
}

// Ensure validates the config and fills in defaults.
func (c *Config) Ensure() error {
	if err := c.LCM.Validate("lcm"); err != nil {
		return err
	}
	if err := c.Target.Validate("target"); err != nil {
		return err
	}
	if err := c.Translation.Validate("translation"); err != nil {
		return err
	}
	if err := c.Metrics.Validate("metrics"); err != nil {
		return err
	}

	if len(c.Repeaters) == 0 {
		return utils.NewConfigValidationFieldRequiredError("", "repeaters")
	}
	seen := map[string]bool{}
	for idx := range c.Repeaters {
		path := fmt.Sprintf("%s.%d", "repeaters", idx)
		if err := c.Repeaters[idx].Validate(path); err != nil {
			return err
		}
		if seen[c.Repeaters[idx].Channel] {
			return utils.NewConfigValidationError(path,
				errors.Errorf("channel %q is repeated twice", c.Repeaters[idx].Channel))
		}
		seen[c.Repeaters[idx].Channel] = true
	}

	for idx, lpc := range c.LogConfig {
		if err := lpc.Validate(); err != nil {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.%d", "log", idx), err)
		}
	}
	return nil
}

// Default returns the configuration of the simulator's viewer bridge: robot loads and draws
// forwarded to NATS on localhost.
func Default() *Config {
	cfg := &Config{
		Repeaters: []RepeaterConfig{
			{Channel: "DRAKE_VIEWER_LOAD_ROBOT", Kind: KindViewerLoadRobot},
			{Channel: "DRAKE_VIEWER_DRAW", Kind: KindViewerDraw},
		},
	}
	if err := cfg.Ensure(); err != nil {
		panic(err)
	}
	return cfg
}
