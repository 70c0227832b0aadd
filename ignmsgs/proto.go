package ignmsgs

import (
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	timeDesc          = mustMessageDescriptor("Time")
	headerDesc        = mustMessageDescriptor("Header")
	vector3dDesc      = mustMessageDescriptor("Vector3d")
	quaternionDesc    = mustMessageDescriptor("Quaternion")
	poseDesc          = mustMessageDescriptor("Pose")
	poseVDesc         = mustMessageDescriptor("Pose_V")
	colorDesc         = mustMessageDescriptor("Color")
	materialDesc      = mustMessageDescriptor("Material")
	boxGeomDesc       = mustMessageDescriptor("BoxGeom")
	sphereGeomDesc    = mustMessageDescriptor("SphereGeom")
	cylinderGeomDesc  = mustMessageDescriptor("CylinderGeom")
	capsuleGeomDesc   = mustMessageDescriptor("CapsuleGeom")
	ellipsoidGeomDesc = mustMessageDescriptor("EllipsoidGeom")
	meshGeomDesc      = mustMessageDescriptor("MeshGeom")
	geometryDesc      = mustMessageDescriptor("Geometry")
	visualDesc        = mustMessageDescriptor("Visual")
	linkDesc          = mustMessageDescriptor("Link")
	modelDesc         = mustMessageDescriptor("Model")
)

// builder wraps a dynamic message with name based setters.
type builder struct {
	msg *dynamicpb.Message
}

func newBuilder(desc protoreflect.MessageDescriptor) builder {
	return builder{dynamicpb.NewMessage(desc)}
}

func (b builder) field(name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := b.msg.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(errors.Errorf("%s has no field %q", b.msg.Descriptor().FullName(), name))
	}
	return fd
}

func (b builder) set(name protoreflect.Name, v protoreflect.Value) builder {
	b.msg.Set(b.field(name), v)
	return b
}

func (b builder) double(name protoreflect.Name, v float64) builder {
	return b.set(name, protoreflect.ValueOfFloat64(v))
}

func (b builder) float(name protoreflect.Name, v float32) builder {
	return b.set(name, protoreflect.ValueOfFloat32(v))
}

func (b builder) str(name protoreflect.Name, v string) builder {
	return b.set(name, protoreflect.ValueOfString(v))
}

func (b builder) child(name protoreflect.Name, child *dynamicpb.Message) builder {
	return b.set(name, protoreflect.ValueOfMessage(child))
}

func (b builder) append(name protoreflect.Name, child *dynamicpb.Message) builder {
	b.msg.Mutable(b.field(name)).List().Append(protoreflect.ValueOfMessage(child))
	return b
}

func (v Vector3d) toProto() *dynamicpb.Message {
	return newBuilder(vector3dDesc).double("x", v.X).double("y", v.Y).double("z", v.Z).msg
}

func (q Quaternion) toProto() *dynamicpb.Message {
	return newBuilder(quaternionDesc).
		double("x", q.X).double("y", q.Y).double("z", q.Z).double("w", q.W).msg
}

func (p Pose) toProto() *dynamicpb.Message {
	return newBuilder(poseDesc).
		str("name", p.Name).
		set("id", protoreflect.ValueOfUint32(p.ID)).
		child("position", p.Position.toProto()).
		child("orientation", p.Orientation.toProto()).msg
}

func (c Color) toProto() *dynamicpb.Message {
	return newBuilder(colorDesc).float("r", c.R).float("g", c.G).float("b", c.B).float("a", c.A).msg
}

func timeToProto(t time.Time) *dynamicpb.Message {
	return newBuilder(timeDesc).
		set("sec", protoreflect.ValueOfInt64(t.Unix())).
		set("nsec", protoreflect.ValueOfInt32(int32(t.Nanosecond()))).msg
}

func (m Material) toProto() *dynamicpb.Message {
	return newBuilder(materialDesc).child("diffuse", m.Diffuse.toProto()).msg
}

func geometryTypeValue(n protoreflect.EnumNumber) protoreflect.Value {
	return protoreflect.ValueOfEnum(n)
}

func shapeToProto(shape Shape) (*dynamicpb.Message, error) {
	geometry := newBuilder(geometryDesc)
	switch s := shape.(type) {
	case Box:
		geometry.set("type", geometryTypeValue(geometryTypeBox)).
			child("box", newBuilder(boxGeomDesc).child("size", s.Size.toProto()).msg)
	case Sphere:
		geometry.set("type", geometryTypeValue(geometryTypeSphere)).
			child("sphere", newBuilder(sphereGeomDesc).double("radius", s.Radius).msg)
	case Cylinder:
		geometry.set("type", geometryTypeValue(geometryTypeCylinder)).
			child("cylinder", newBuilder(cylinderGeomDesc).double("radius", s.Radius).double("length", s.Length).msg)
	case Capsule:
		geometry.set("type", geometryTypeValue(geometryTypeCapsule)).
			child("capsule", newBuilder(capsuleGeomDesc).double("radius", s.Radius).double("length", s.Length).msg)
	case Ellipsoid:
		geometry.set("type", geometryTypeValue(geometryTypeEllipsoid)).
			child("ellipsoid", newBuilder(ellipsoidGeomDesc).child("radii", s.Radii.toProto()).msg)
	case Mesh:
		geometry.set("type", geometryTypeValue(geometryTypeMesh)).
			child("mesh", newBuilder(meshGeomDesc).str("filename", s.Filename).child("scale", s.Scale.toProto()).msg)
	case nil:
		return nil, errors.New("visual has no geometry")
	default:
		return nil, errors.Errorf("unhandled shape %T", shape)
	}
	return geometry.msg, nil
}

func (v Visual) toProto() (*dynamicpb.Message, error) {
	geometry, err := shapeToProto(v.Geometry)
	if err != nil {
		return nil, err
	}
	return newBuilder(visualDesc).
		child("pose", v.Pose.toProto()).
		child("material", v.Material.toProto()).
		child("geometry", geometry).msg, nil
}

func (l Link) toProto() (*dynamicpb.Message, error) {
	link := newBuilder(linkDesc).str("name", l.Name)
	for i, v := range l.Visuals {
		visual, err := v.toProto()
		if err != nil {
			return nil, errors.Wrapf(err, "link %q visual %d", l.Name, i)
		}
		link.append("visual", visual)
	}
	return link.msg, nil
}

// MessageType returns the ignition type name.
func (m *Model) MessageType() string {
	return ModelType
}

// ToProto converts the model into an ignition.msgs.Model protobuf message.
func (m *Model) ToProto() (proto.Message, error) {
	model := newBuilder(modelDesc)
	for _, l := range m.Links {
		link, err := l.toProto()
		if err != nil {
			return nil, err
		}
		model.append("link", link)
	}
	return model.msg, nil
}

// Marshal returns the protobuf wire encoding of the model.
func (m *Model) Marshal() ([]byte, error) {
	return marshal(m.ToProto())
}

// MessageType returns the ignition type name.
func (p *PoseV) MessageType() string {
	return PoseVType
}

// ToProto converts the poses into an ignition.msgs.Pose_V protobuf message.
func (p *PoseV) ToProto() (proto.Message, error) {
	header := newBuilder(headerDesc).child("stamp", timeToProto(p.Stamp)).msg
	poses := newBuilder(poseVDesc).child("header", header)
	for _, pose := range p.Poses {
		poses.append("pose", pose.toProto())
	}
	return poses.msg, nil
}

// Marshal returns the protobuf wire encoding of the poses.
func (p *PoseV) Marshal() ([]byte, error) {
	return marshal(p.ToProto())
}

func marshal(msg proto.Message, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

// Unmarshal decodes an ignition message of the named type into a dynamic message, for
// tooling that inspects published traffic.
func Unmarshal(fullName string, data []byte) (*dynamicpb.Message, error) {
	desc, err := MessageDescriptor(fullName)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(desc)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", fullName)
	}
	return msg, nil
}
