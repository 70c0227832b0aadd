// Package server implements the entry point for running an LCM bridge.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/lcmbridge/bridge"
	"go.viam.com/lcmbridge/config"
	"go.viam.com/lcmbridge/lcm"
	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/protoutils"
	"go.viam.com/lcmbridge/transport"
	"go.viam.com/lcmbridge/transport/natsnode"
	rutils "go.viam.com/lcmbridge/utils"
)

// Arguments for the command. Flags override the matching config file values.
type Arguments struct {
	ConfigFile  string `flag:"config,usage=bridge config file"`
	LCMURL      string `flag:"lcm-url,usage=LCM URL to read from"`
	NATSURL     string `flag:"nats-url,usage=NATS server to publish to"`
	Transport   string `flag:"transport,usage=target transport (nats or memory)"`
	MetricsAddr string `flag:"metrics-addr,usage=address to serve prometheus metrics on"`
	Record      string `flag:"record,usage=also append every publication to this file"`
	Debug       bool   `flag:"debug"`
}

// RunServer is an entry point to starting the bridge that can be called by main or otherwise
// be used to run it in process. It returns when ctx is done or the LCM bus fails.
func RunServer(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := config.Read(argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	if err := applyArguments(cfg, argsParsed); err != nil {
		return err
	}

	defaultLevel := logging.INFO
	if cfg.Debug {
		defaultLevel = logging.DEBUG
		logger.SetLevel(logging.DEBUG)
	}
	if err := logging.UpdateLoggerPatterns(cfg.LogConfig, defaultLevel); err != nil {
		return err
	}
	rutils.LogBridgeEnvVariables("bridge environment", logger)

	err = serveBridge(ctx, cfg, logger)
	if err != nil {
		logger.Errorw("error running bridge", "error", err)
	}
	return err
}

// applyArguments overrides cfg with the flags that were given and validates the result.
func applyArguments(cfg *config.Config, argsParsed Arguments) error {
	if argsParsed.LCMURL != "" {
		cfg.LCM.URL = argsParsed.LCMURL
	}
	if argsParsed.Transport != "" {
		cfg.Target.Transport = argsParsed.Transport
	}
	if argsParsed.NATSURL != "" {
		cfg.Target.NATSURL = argsParsed.NATSURL
	}
	if argsParsed.Record != "" {
		cfg.Target.RecordPath = argsParsed.Record
	}
	if argsParsed.MetricsAddr != "" {
		cfg.Metrics.Address = argsParsed.MetricsAddr
	}
	cfg.Debug = cfg.Debug || argsParsed.Debug
	return cfg.Ensure()
}

func serveBridge(ctx context.Context, cfg *config.Config, logger logging.Logger) (err error) {
	bus, err := lcm.New(cfg.LCM.URL, logger.Sublogger("lcm"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, bus.Close())
	}()

	node, err := openTarget(ctx, cfg.Target, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, node.Close())
	}()

	opts := []bridge.Option{bridge.WithStatsInterval(rutils.GetStatsInterval(logger))}
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := bridge.NewMetrics(reg)
		if err != nil {
			return err
		}
		opts = append(opts, bridge.WithMetrics(metrics))

		stop, err := serveMetrics(cfg.Metrics.Address, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	b, err := bridge.New(cfg, bus, node, logger.Sublogger("bridge"), opts...)
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, b.Close())
	}()

	logger.Infow("bridge running", "lcm", bus.URL().String(), "transport", cfg.Target.Transport,
		"repeaters", len(b.Repeaters()))
	return b.Run(ctx)
}

// openTarget connects the configured target node, wrapped in a recorder when a record path is
// set.
func openTarget(ctx context.Context, cfg config.TargetConfig, logger logging.Logger) (transport.Node, error) {
	var node transport.Node
	switch cfg.Transport {
	case config.TransportMemory:
		node = transport.NewMemoryNode()
	case config.TransportNATS:
		opts := []natsnode.Option{}
		if cfg.SubjectPrefix != "" {
			opts = append(opts, natsnode.WithSubjectPrefix(cfg.SubjectPrefix))
		}
		if cfg.ClientName != "" {
			opts = append(opts, natsnode.WithName(cfg.ClientName))
		}
		natsNode, err := natsnode.Connect(ctx, cfg.NATSURL, logger.Sublogger("nats"), opts...)
		if err != nil {
			return nil, err
		}
		node = natsNode
	default:
		return nil, errors.Errorf("unknown transport %q", cfg.Transport)
	}

	if cfg.RecordPath == "" {
		return node, nil
	}
	//nolint:gosec
	f, err := os.Create(cfg.RecordPath)
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "opening recording"), node.Close())
	}
	logger.Infow("recording publications", "path", cfg.RecordPath)
	return transport.NewRecordingNode(node, protoutils.NewDelimitedProtoWriter(f)), nil
}

// serveMetrics serves reg on /metrics at address until the returned function is called.
func serveMetrics(address string, reg *prometheus.Registry, logger logging.Logger) (func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "listening for metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveDone := make(chan struct{})
	utils.PanicCapturingGo(func() {
		defer close(serveDone)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server stopped", "error", err)
		}
	})
	logger.Infow("serving metrics", "address", listener.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("error stopping metrics server", "error", err)
		}
		<-serveDone
	}, nil
}
