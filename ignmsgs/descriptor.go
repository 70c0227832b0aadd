package ignmsgs

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const protoPackage = "ignition.msgs"

// Fully qualified names of the published message types.
const (
	ModelType = protoPackage + ".Model"
	PoseVType = protoPackage + ".Pose_V"

	// RecordType frames published messages in recordings. It is not an ignition message.
	RecordType = "lcmbridge.Record"
)

// Values of ignition.msgs.Geometry.Type.
const (
	geometryTypeBox       = 0
	geometryTypeCylinder  = 1
	geometryTypeSphere    = 3
	geometryTypeMesh      = 6
	geometryTypeCapsule   = 14
	geometryTypeEllipsoid = 15
)

var geometryTypeValues = []struct {
	name   string
	number int32
}{
	{"BOX", geometryTypeBox},
	{"CYLINDER", geometryTypeCylinder},
	{"PLANE", 2},
	{"SPHERE", geometryTypeSphere},
	{"IMAGE", 4},
	{"HEIGHTMAP", 5},
	{"MESH", geometryTypeMesh},
	{"TRIANGLE_FAN", 7},
	{"LINE_STRIP", 8},
	{"POLYLINE", 9},
	{"CONE", 10},
	{"EMPTY", 11},
	{"ARROW", 12},
	{"AXIS", 13},
	{"CAPSULE", geometryTypeCapsule},
	{"ELLIPSOID", geometryTypeEllipsoid},
}

type fieldSpec struct {
	name     string
	number   int32
	kind     descriptorpb.FieldDescriptorProto_Type
	typeName string
	repeated bool
}

func scalar(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type) fieldSpec {
	return fieldSpec{name: name, number: number, kind: kind}
}

func message(name string, number int32, typeName string) fieldSpec {
	return fieldSpec{
		name: name, number: number,
		kind:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
		typeName: "." + protoPackage + "." + typeName,
	}
}

func repeated(name string, number int32, typeName string) fieldSpec {
	f := message(name, number, typeName)
	f.repeated = true
	return f
}

func messageProto(name string, fields ...fieldSpec) *descriptorpb.DescriptorProto {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for _, f := range fields {
		label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
		if f.repeated {
			label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
		}
		fdp := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.name),
			Number: proto.Int32(f.number),
			Label:  label.Enum(),
			Type:   f.kind.Enum(),
		}
		if f.typeName != "" {
			fdp.TypeName = proto.String(f.typeName)
		}
		msg.Field = append(msg.Field, fdp)
	}
	return msg
}

const (
	tDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	tFloat  = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	tString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tUint32 = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	tInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	tEnum   = descriptorpb.FieldDescriptorProto_TYPE_ENUM
)

func fileProto() *descriptorpb.FileDescriptorProto {
	geometry := messageProto("Geometry",
		message("header", 1, "Header"),
		fieldSpec{name: "type", number: 2, kind: tEnum, typeName: "." + protoPackage + ".Geometry.Type"},
		message("box", 3, "BoxGeom"),
		message("cylinder", 4, "CylinderGeom"),
		message("sphere", 6, "SphereGeom"),
		message("mesh", 9, "MeshGeom"),
		message("capsule", 14, "CapsuleGeom"),
		message("ellipsoid", 15, "EllipsoidGeom"),
	)
	geometryType := &descriptorpb.EnumDescriptorProto{Name: proto.String("Type")}
	for _, v := range geometryTypeValues {
		geometryType.Value = append(geometryType.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.name),
			Number: proto.Int32(v.number),
		})
	}
	geometry.EnumType = []*descriptorpb.EnumDescriptorProto{geometryType}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("ignition/msgs/lcmbridge.proto"),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			messageProto("Time", scalar("sec", 1, tInt64), scalar("nsec", 2, tInt32)),
			messageProto("Header", message("stamp", 1, "Time")),
			messageProto("Vector3d",
				message("header", 1, "Header"),
				scalar("x", 2, tDouble), scalar("y", 3, tDouble), scalar("z", 4, tDouble)),
			messageProto("Quaternion",
				message("header", 1, "Header"),
				scalar("x", 2, tDouble), scalar("y", 3, tDouble), scalar("z", 4, tDouble), scalar("w", 5, tDouble)),
			messageProto("Pose",
				message("header", 1, "Header"),
				scalar("name", 2, tString),
				scalar("id", 3, tUint32),
				message("position", 4, "Vector3d"),
				message("orientation", 5, "Quaternion")),
			messageProto("Pose_V", message("header", 1, "Header"), repeated("pose", 2, "Pose")),
			messageProto("Color",
				message("header", 1, "Header"),
				scalar("r", 2, tFloat), scalar("g", 3, tFloat), scalar("b", 4, tFloat), scalar("a", 5, tFloat)),
			messageProto("Material",
				message("header", 1, "Header"),
				message("ambient", 5, "Color"),
				message("diffuse", 6, "Color")),
			messageProto("BoxGeom", message("header", 1, "Header"), message("size", 2, "Vector3d")),
			messageProto("SphereGeom", message("header", 1, "Header"), scalar("radius", 2, tDouble)),
			messageProto("CylinderGeom",
				message("header", 1, "Header"), scalar("radius", 2, tDouble), scalar("length", 3, tDouble)),
			messageProto("CapsuleGeom",
				message("header", 1, "Header"), scalar("radius", 2, tDouble), scalar("length", 3, tDouble)),
			messageProto("EllipsoidGeom", message("header", 1, "Header"), message("radii", 2, "Vector3d")),
			messageProto("MeshGeom",
				message("header", 1, "Header"), scalar("filename", 2, tString), message("scale", 3, "Vector3d")),
			geometry,
			messageProto("Visual",
				message("header", 1, "Header"),
				scalar("name", 2, tString),
				scalar("id", 3, tUint32),
				scalar("parent_name", 4, tString),
				message("pose", 9, "Pose"),
				message("geometry", 10, "Geometry"),
				message("material", 11, "Material")),
			messageProto("Link",
				message("header", 1, "Header"),
				scalar("id", 2, tUint32),
				scalar("name", 3, tString),
				message("pose", 9, "Pose"),
				repeated("visual", 10, "Visual")),
			messageProto("Model",
				message("header", 1, "Header"),
				scalar("name", 2, tString),
				scalar("id", 3, tUint32),
				scalar("is_static", 4, tBool),
				message("pose", 5, "Pose"),
				repeated("link", 7, "Link")),
		},
	}
}

func recordFileProto() *descriptorpb.FileDescriptorProto {
	record := messageProto("Record",
		scalar("topic", 1, tString),
		scalar("type", 2, tString),
		message("stamp", 3, "Time"),
		scalar("data", 4, tBytes),
	)
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String("lcmbridge/record.proto"),
		Package:     proto.String("lcmbridge"),
		Syntax:      proto.String("proto3"),
		Dependency:  []string{"ignition/msgs/lcmbridge.proto"},
		MessageType: []*descriptorpb.DescriptorProto{record},
	}
}

var files = mustBuildFiles()

func mustBuildFiles() *protoregistry.Files {
	registry := new(protoregistry.Files)
	for _, fdp := range []*descriptorpb.FileDescriptorProto{fileProto(), recordFileProto()} {
		fd, err := protodesc.NewFile(fdp, registry)
		if err != nil {
			panic(errors.Wrapf(err, "building %s descriptors", fdp.GetPackage()))
		}
		if err := registry.RegisterFile(fd); err != nil {
			panic(errors.Wrapf(err, "registering %s descriptors", fdp.GetPackage()))
		}
	}
	return registry
}

// MessageDescriptor returns the descriptor of a fully qualified ignition message name, e.g.
// "ignition.msgs.Model".
func MessageDescriptor(fullName string) (protoreflect.MessageDescriptor, error) {
	desc, err := files.FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		return nil, errors.Wrapf(err, "unknown message type %q", fullName)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Errorf("%q is not a message", fullName)
	}
	return md, nil
}

func mustMessageDescriptor(name string) protoreflect.MessageDescriptor {
	return mustDescriptor(protoPackage + "." + name)
}

func mustDescriptor(fullName string) protoreflect.MessageDescriptor {
	md, err := MessageDescriptor(fullName)
	if err != nil {
		panic(err)
	}
	return md
}
