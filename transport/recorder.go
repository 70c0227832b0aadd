package transport

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/protoutils"
)

// Encoded is a message that is already marshaled.
type Encoded struct {
	Type string
	Data []byte
}

// MessageType returns the recorded type.
func (e Encoded) MessageType() string { return e.Type }

// Marshal returns the encoded bytes.
func (e Encoded) Marshal() ([]byte, error) { return e.Data, nil }

// RecordingNode passes publications through to another node and appends each one, as an
// lcmbridge.Record frame, to a delimited protobuf stream.
type RecordingNode struct {
	inner  Node
	writer *protoutils.DelimitedProtoWriter
	clock  clock.Clock
}

// NewRecordingNode wraps inner. Closing the node closes writer too.
func NewRecordingNode(inner Node, writer *protoutils.DelimitedProtoWriter) *RecordingNode {
	return &RecordingNode{inner: inner, writer: writer, clock: clock.New()}
}

// Advertise advertises on the inner node.
func (n *RecordingNode) Advertise(topic, msgType string) (Publisher, error) {
	pub, err := n.inner.Advertise(topic, msgType)
	if err != nil {
		return nil, err
	}
	return &recordingPublisher{Publisher: pub, node: n}, nil
}

// Close closes the inner node and the recording.
func (n *RecordingNode) Close() error {
	return multierr.Combine(n.inner.Close(), n.writer.Close())
}

type recordingPublisher struct {
	Publisher
	node *RecordingNode
}

func (p *recordingPublisher) Publish(ctx context.Context, msg Message) error {
	if err := CheckType(p, msg); err != nil {
		return err
	}
	data, err := msg.Marshal()
	if err != nil {
		return errors.Wrapf(err, "encoding %s for %q", msg.MessageType(), p.Topic())
	}
	if err := p.Publisher.Publish(ctx, Encoded{Type: msg.MessageType(), Data: data}); err != nil {
		return err
	}
	rec := &ignmsgs.Record{Topic: p.Topic(), Type: msg.MessageType(), Stamp: p.node.clock.Now(), Data: data}
	return errors.Wrap(p.node.writer.Append(rec.ToProto()), "recording publication")
}
