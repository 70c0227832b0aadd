package cli

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/protoutils"
	"go.viam.com/lcmbridge/transport"
	"go.viam.com/lcmbridge/transport/natsnode"
)

// EchoAction prints the messages published on a topic until interrupted or --count is reached.
func EchoAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	node, err := natsnode.Connect(c.Context, c.String(flagNATSURL), logger,
		natsnode.WithSubjectPrefix(c.String(flagSubjectPrefix)))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, node.Close())
	}()

	deliveries := make(chan transport.Delivery, 64)
	sub, err := node.Subscribe(c.String(flagTopic), func(d transport.Delivery) {
		select {
		case deliveries <- d:
		default:
			logger.Warnw("output is behind, dropping message", "topic", d.Topic)
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sub.Unsubscribe())
	}()
	if err := node.Flush(c.Context); err != nil {
		return err
	}
	logger.Debugw("listening", "topic", c.String(flagTopic))

	count := c.Int(flagCount)
	for printed := 0; count == 0 || printed < count; printed++ {
		select {
		case <-c.Context.Done():
			return nil
		case d := <-deliveries:
			msg, err := ignmsgs.Unmarshal(d.Type, d.Data)
			if err != nil {
				return err
			}
			printf(c.App.Writer, "%s %s %s", d.Topic, d.Type, protojson.Format(msg))
		}
	}
	return nil
}

// DumpAction prints every record of a recording.
func DumpAction(c *cli.Context) (err error) {
	if c.Args().Len() != 1 {
		return errors.New("dump expects exactly one FILE argument")
	}
	//nolint:gosec
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	reader := protoutils.NewRawDelimitedProtoReader(f)
	defer func() {
		err = multierr.Combine(err, reader.Close())
	}()

	var n int
	for data := range reader.All() {
		rec, err := ignmsgs.ParseRecord(data)
		if err != nil {
			return errors.Wrapf(err, "record %d", n)
		}
		msg, err := rec.Decode()
		if err != nil {
			return errors.Wrapf(err, "record %d", n)
		}
		printf(c.App.Writer, "%s %s %s %s",
			rec.Stamp.UTC().Format(time.RFC3339Nano), rec.Topic, rec.Type, protojson.Format(msg))
		n++
	}
	if err := reader.Err(); err != nil {
		return errors.Wrapf(err, "after record %d", n)
	}
	printf(c.App.Writer, "%d records", n)
	return nil
}
