package natsnode

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"go.viam.com/test"

	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/transport"
)

func runServer(t *testing.T) string {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

func TestSubject(t *testing.T) {
	for topic, expected := range map[string]string{
		"/DRAKE_VIEWER_LOAD_ROBOT": "ign.DRAKE_VIEWER_LOAD_ROBOT",
		"/world/car/pose":          "ign.world.car.pose",
		"relative":                 "ign.relative",
		"/a.b/c*d":                 "ign.a_b.c_d",
	} {
		subject, err := Subject(DefaultSubjectPrefix, topic)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, subject, test.ShouldEqual, expected)
	}
	_, err := Subject(DefaultSubjectPrefix, "/a b")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNodePublish(t *testing.T) {
	url := runServer(t)
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	node, err := Connect(ctx, url, logger, WithSubjectPrefix("sim"), WithName("bridge-test"))
	test.That(t, err, test.ShouldBeNil)
	defer node.Close()

	raw, err := nats.Connect(url)
	test.That(t, err, test.ShouldBeNil)
	defer raw.Close()
	received := make(chan *nats.Msg, 1)
	_, err = raw.ChanSubscribe("sim.DRAKE_VIEWER_DRAW", received)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Flush(), test.ShouldBeNil)

	echoed := make(chan transport.Delivery, 1)
	_, err = node.Subscribe("/DRAKE_VIEWER_DRAW", func(d transport.Delivery) { echoed <- d })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, node.Flush(ctx), test.ShouldBeNil)

	pub, err := node.Advertise("/DRAKE_VIEWER_DRAW", ignmsgs.PoseVType)
	test.That(t, err, test.ShouldBeNil)
	_, err = node.Advertise("/DRAKE_VIEWER_DRAW", ignmsgs.ModelType)
	test.That(t, err, test.ShouldNotBeNil)

	poses := &ignmsgs.PoseV{Stamp: time.Unix(5, 0), Poses: []ignmsgs.Pose{{Name: "chassis_floor"}}}
	test.That(t, pub.Publish(ctx, poses), test.ShouldBeNil)
	test.That(t, pub.Publish(ctx, &ignmsgs.Model{}), test.ShouldNotBeNil)
	test.That(t, node.Flush(ctx), test.ShouldBeNil)

	expected, err := poses.Marshal()
	test.That(t, err, test.ShouldBeNil)
	select {
	case msg := <-received:
		test.That(t, msg.Header.Get(MessageTypeHeader), test.ShouldEqual, ignmsgs.PoseVType)
		test.That(t, msg.Header.Get(TopicHeader), test.ShouldEqual, "/DRAKE_VIEWER_DRAW")
		test.That(t, msg.Data, test.ShouldResemble, expected)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	select {
	case d := <-echoed:
		test.That(t, d.Topic, test.ShouldEqual, "/DRAKE_VIEWER_DRAW")
		test.That(t, d.Type, test.ShouldEqual, ignmsgs.PoseVType)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	msgType, ok := node.Advertised("/DRAKE_VIEWER_DRAW")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, msgType, test.ShouldEqual, ignmsgs.PoseVType)
	released, err := node.Advertise("/DRAKE_VIEWER_DRAW", ignmsgs.PoseVType)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, released.Close(), test.ShouldBeNil)
	test.That(t, released.Publish(ctx, poses), test.ShouldEqual, transport.ErrClosed)
	_, ok = node.Advertised("/DRAKE_VIEWER_DRAW")
	test.That(t, ok, test.ShouldBeTrue)

	test.That(t, node.Close(), test.ShouldBeNil)
	test.That(t, node.Close(), test.ShouldBeNil)
	test.That(t, pub.Publish(ctx, poses), test.ShouldEqual, transport.ErrClosed)
	_, err = node.Advertise("/other", ignmsgs.ModelType)
	test.That(t, err, test.ShouldEqual, transport.ErrClosed)
}

func TestConnectErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := Connect(context.Background(), "nats://127.0.0.1:1", logger, WithTimeout(100*time.Millisecond))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Connect(context.Background(), runServer(t), logger, WithSubjectPrefix("bad prefix"))
	test.That(t, err, test.ShouldNotBeNil)
}
