package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/lcmbridge/lcm"
	"go.viam.com/lcmbridge/lcmtypes"
	"go.viam.com/lcmbridge/samples"
)

// SendRobotAction publishes one load robot message.
func SendRobotAction(c *cli.Context) error {
	robot, err := loadRobot(c)
	if err != nil {
		return err
	}
	return withBus(c, func(bus *lcm.Bus) error {
		return publish(c, bus, c.String(flagChannel), robot)
	})
}

// SendDrawAction publishes --count draw messages for a sample robot, --interval apart.
func SendDrawAction(c *cli.Context) error {
	robot, err := sampleRobot(c.String(flagSample))
	if err != nil {
		return err
	}
	count := c.Int(flagCount)
	if count < 1 {
		return errors.Errorf("--%s must be at least 1", flagCount)
	}
	interval := c.Duration(flagInterval)
	stamp := time.Now().UnixMilli()
	if c.IsSet(flagTimestamp) {
		stamp = c.Int64(flagTimestamp)
	}

	return withBus(c, func(bus *lcm.Bus) error {
		for i := 0; i < count; i++ {
			if i > 0 && !utils.SelectContextOrWait(c.Context, interval) {
				return c.Context.Err()
			}
			draw := samples.DrawFor(robot, stamp+int64(i)*interval.Milliseconds())
			if err := publish(c, bus, c.String(flagChannel), draw); err != nil {
				return err
			}
		}
		return nil
	})
}

// FingerprintsAction prints every supported LCM type with its fingerprint.
func FingerprintsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Type", "Fingerprint"})
	for _, info := range lcmtypes.Types() {
		t.AppendRow(table.Row{info.Name, fmt.Sprintf("0x%016x", info.Fingerprint)})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

func withBus(c *cli.Context, fn func(bus *lcm.Bus) error) (err error) {
	bus, err := lcm.New(c.String(flagLCMURL), newLogger(c))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, bus.Close())
	}()
	return fn(bus)
}

func publish(c *cli.Context, bus *lcm.Bus, channel string, msg lcmtypes.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := bus.Publish(channel, data); err != nil {
		return err
	}
	printf(c.App.Writer, "sent %s (%d bytes) on %s", msg.TypeName(), len(data), channel)
	return nil
}

func loadRobot(c *cli.Context) (*lcmtypes.ViewerLoadRobot, error) {
	path := c.Path(flagFile)
	if path == "" {
		return sampleRobot(c.String(flagSample))
	}
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	robot := &lcmtypes.ViewerLoadRobot{}
	if err := json.Unmarshal(data, robot); err != nil {
		return nil, errors.Wrapf(err, "reading robot from %s", path)
	}
	fillCounts(robot)
	return robot, nil
}

// fillCounts sets the count fields a hand written robot is likely to leave out.
func fillCounts(robot *lcmtypes.ViewerLoadRobot) {
	if robot.NumLinks == 0 {
		robot.NumLinks = int32(len(robot.Link))
	}
	for i := range robot.Link {
		link := &robot.Link[i]
		if link.NumGeom == 0 {
			link.NumGeom = int32(len(link.Geom))
		}
		for j := range link.Geom {
			if link.Geom[j].NumFloatData == 0 {
				link.Geom[j].NumFloatData = int32(len(link.Geom[j].FloatData))
			}
		}
	}
}

func sampleRobot(name string) (*lcmtypes.ViewerLoadRobot, error) {
	switch name {
	case sampleChassis:
		return samples.ChassisFloor(), nil
	case sampleCar:
		return samples.SampleCar(), nil
	default:
		return nil, errors.Errorf("unknown sample %q, expected %q or %q", name, sampleChassis, sampleCar)
	}
}
