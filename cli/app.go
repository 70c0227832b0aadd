// Package cli contains the bridgectl command line tool, used to feed a bridge with viewer
// messages and to inspect what it publishes.
package cli

import (
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"go.viam.com/lcmbridge/transport/natsnode"
)

const (
	generalFlagDebug = "debug"

	flagLCMURL        = "lcm-url"
	flagChannel       = "channel"
	flagSample        = "sample"
	flagFile          = "file"
	flagCount         = "count"
	flagInterval      = "interval"
	flagTimestamp     = "timestamp"
	flagNATSURL       = "nats-url"
	flagSubjectPrefix = "subject-prefix"
	flagTopic         = "topic"

	sampleChassis = "chassis"
	sampleCar     = "car"

	defaultLoadRobotChannel = "DRAKE_VIEWER_LOAD_ROBOT"
	defaultDrawChannel      = "DRAKE_VIEWER_DRAW"
)

func lcmURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  flagLCMURL,
		Usage: "LCM URL to publish on; defaults to LCM_DEFAULT_URL or the LCM default",
	}
}

func sampleFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  flagSample,
		Value: sampleChassis,
		Usage: "built in robot to use: " + sampleChassis + " or " + sampleCar,
	}
}

func channelFlag(channel string) cli.Flag {
	return &cli.StringFlag{
		Name:  flagChannel,
		Value: channel,
		Usage: "LCM channel to publish on",
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "bridgectl",
		Usage:           "feed and inspect an LCM bridge",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "send-robot",
				Usage:     "publish an lcmt_viewer_load_robot message",
				UsageText: "bridgectl send-robot [--sample car | --file robot.json]",
				Flags: []cli.Flag{
					lcmURLFlag(),
					channelFlag(defaultLoadRobotChannel),
					sampleFlag(),
					&cli.PathFlag{
						Name:  flagFile,
						Usage: "JSON `FILE` holding the robot instead of a sample",
					},
				},
				Action: SendRobotAction,
			},
			{
				Name:  "send-draw",
				Usage: "publish lcmt_viewer_draw messages placing every link of a sample robot at the origin",
				Flags: []cli.Flag{
					lcmURLFlag(),
					channelFlag(defaultDrawChannel),
					sampleFlag(),
					&cli.IntFlag{
						Name:  flagCount,
						Value: 1,
						Usage: "number of messages to send",
					},
					&cli.DurationFlag{
						Name:  flagInterval,
						Value: 100 * time.Millisecond,
						Usage: "time between messages",
					},
					&cli.Int64Flag{
						Name:  flagTimestamp,
						Usage: "timestamp of the first message in milliseconds; defaults to now",
					},
				},
				Action: SendDrawAction,
			},
			{
				Name:  "echo",
				Usage: "print the messages published on an ignition topic over NATS",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagNATSURL,
						Value: "nats://127.0.0.1:4222",
						Usage: "NATS server the bridge publishes to",
					},
					&cli.StringFlag{
						Name:  flagSubjectPrefix,
						Value: natsnode.DefaultSubjectPrefix,
						Usage: "subject prefix the bridge publishes under",
					},
					&cli.StringFlag{
						Name:  flagTopic,
						Value: "/" + defaultLoadRobotChannel,
						Usage: "ignition topic to print",
					},
					&cli.IntFlag{
						Name:  flagCount,
						Usage: "exit after this many messages; 0 prints until interrupted",
					},
				},
				Action: EchoAction,
			},
			{
				Name:      "dump",
				Usage:     "print a recording written by the bridge",
				UsageText: "bridgectl dump <FILE>",
				ArgsUsage: "<FILE>",
				Action:    DumpAction,
			},
			{
				Name:   "fingerprints",
				Usage:  "print the fingerprints of the supported LCM types",
				Action: FingerprintsAction,
			},
		},
	}
}
