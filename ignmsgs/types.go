// Package ignmsgs holds the ignition-msgs records the bridge publishes and their protobuf
// encoding. Only the fields the bridge fills in are modelled; field numbers follow the
// ignition.msgs schema so any ignition-msgs consumer can decode the output.
package ignmsgs

import (
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Vector3d is ignition.msgs.Vector3d.
type Vector3d struct {
	X, Y, Z float64
}

// NewVector3d converts an r3 vector.
func NewVector3d(v r3.Vector) Vector3d {
	return Vector3d{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion is ignition.msgs.Quaternion. Note the field order: the scalar part comes last.
type Quaternion struct {
	X, Y, Z, W float64
}

// NewQuaternion converts a gonum quaternion, whose Real part is the scalar.
func NewQuaternion(q quat.Number) Quaternion {
	return Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// Pose is ignition.msgs.Pose.
type Pose struct {
	Name        string
	ID          uint32
	Position    Vector3d
	Orientation Quaternion
}

// Color is ignition.msgs.Color, RGBA.
type Color struct {
	R, G, B, A float32
}

// Material is the subset of ignition.msgs.Material the bridge fills in.
type Material struct {
	Diffuse Color
}

// Shape is the geometry of a visual. The set of shapes is closed: only the types in this
// package implement it.
type Shape interface {
	isShape()
}

// Box is ignition.msgs.BoxGeom.
type Box struct {
	Size Vector3d
}

// Sphere is ignition.msgs.SphereGeom.
type Sphere struct {
	Radius float64
}

// Cylinder is ignition.msgs.CylinderGeom.
type Cylinder struct {
	Radius float64
	Length float64
}

// Capsule is ignition.msgs.CapsuleGeom.
type Capsule struct {
	Radius float64
	Length float64
}

// Ellipsoid is ignition.msgs.EllipsoidGeom.
type Ellipsoid struct {
	Radii Vector3d
}

// Mesh is ignition.msgs.MeshGeom.
type Mesh struct {
	Filename string
	Scale    Vector3d
}

func (Box) isShape()       {}
func (Sphere) isShape()    {}
func (Cylinder) isShape()  {}
func (Capsule) isShape()   {}
func (Ellipsoid) isShape() {}
func (Mesh) isShape()      {}

// Visual is ignition.msgs.Visual.
type Visual struct {
	Pose     Pose
	Material Material
	Geometry Shape
}

// Link is ignition.msgs.Link.
type Link struct {
	Name    string
	Visuals []Visual
}

// Model is ignition.msgs.Model.
type Model struct {
	Links []Link
}

// PoseV is ignition.msgs.Pose_V, a stamped list of poses.
type PoseV struct {
	Stamp time.Time
	Poses []Pose
}
