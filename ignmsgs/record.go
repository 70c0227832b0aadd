package ignmsgs

import (
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var recordDesc = mustDescriptor(RecordType)

// Record is one published message as stored in a recording.
type Record struct {
	Topic string
	Type  string
	Stamp time.Time
	Data  []byte
}

// ToProto converts the record into its lcmbridge.Record protobuf message.
func (r *Record) ToProto() proto.Message {
	return newBuilder(recordDesc).
		str("topic", r.Topic).
		str("type", r.Type).
		child("stamp", timeToProto(r.Stamp)).
		set("data", protoreflect.ValueOfBytes(r.Data)).msg
}

// ParseRecord decodes an lcmbridge.Record.
func ParseRecord(data []byte) (*Record, error) {
	msg := dynamicpb.NewMessage(recordDesc)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrap(err, "decoding recording frame")
	}
	fields := recordDesc.Fields()
	stamp := msg.Get(fields.ByName("stamp")).Message()
	stampFields := timeDesc.Fields()
	return &Record{
		Topic: msg.Get(fields.ByName("topic")).String(),
		Type:  msg.Get(fields.ByName("type")).String(),
		Stamp: time.Unix(stamp.Get(stampFields.ByName("sec")).Int(), stamp.Get(stampFields.ByName("nsec")).Int()),
		Data:  msg.Get(fields.ByName("data")).Bytes(),
	}, nil
}

// Decode unmarshals the recorded payload according to its type.
func (r *Record) Decode() (*dynamicpb.Message, error) {
	return Unmarshal(r.Type, r.Data)
}
