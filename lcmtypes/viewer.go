package lcmtypes

import (
	"fmt"

	"github.com/pkg/errors"
)

// GeometryType is the shape discriminant of lcmt_viewer_geometry_data.
type GeometryType int8

// Shape kinds, as declared by lcmt_viewer_geometry_data.
const (
	GeometryBox       GeometryType = 1
	GeometrySphere    GeometryType = 2
	GeometryCylinder  GeometryType = 3
	GeometryMesh      GeometryType = 4
	GeometryCapsule   GeometryType = 5
	GeometryEllipsoid GeometryType = 6
)

// KnownGeometryTypes lists every shape kind the protocol declares.
var KnownGeometryTypes = []GeometryType{
	GeometryBox,
	GeometrySphere,
	GeometryCylinder,
	GeometryMesh,
	GeometryCapsule,
	GeometryEllipsoid,
}

func (t GeometryType) String() string {
	switch t {
	case GeometryBox:
		return "box"
	case GeometrySphere:
		return "sphere"
	case GeometryCylinder:
		return "cylinder"
	case GeometryMesh:
		return "mesh"
	case GeometryCapsule:
		return "capsule"
	case GeometryEllipsoid:
		return "ellipsoid"
	default:
		return fmt.Sprintf("unknown(%d)", int8(t))
	}
}

// ViewerGeometryData is lcmt_viewer_geometry_data: one visual primitive of a link.
type ViewerGeometryData struct {
	Type GeometryType
	// Position of the geometry in the link frame.
	Position [3]float32
	// Quaternion is the orientation, scalar first (w, x, y, z) when published by Drake.
	Quaternion [4]float32
	// Color is RGBA in [0, 1].
	Color [4]float32
	// StringData carries the mesh file name for meshes.
	StringData   string
	NumFloatData int32
	// FloatData holds the shape parameters, e.g. the three box sizes.
	FloatData []float32
}

// minimum encoded size of a geometry: type + 11 floats + empty string + count.
const minGeometrySize = 1 + 11*4 + 5 + 4

func (g *ViewerGeometryData) encode(e *encoder) error {
	if err := checkCount("num_float_data", g.NumFloatData, len(g.FloatData)); err != nil {
		return err
	}
	e.int8(int8(g.Type))
	e.float32s(g.Position[:])
	e.float32s(g.Quaternion[:])
	e.float32s(g.Color[:])
	e.string(g.StringData)
	e.int32(g.NumFloatData)
	e.float32s(g.FloatData[:g.NumFloatData])
	return nil
}

func (g *ViewerGeometryData) decode(d *decoder) {
	g.Type = GeometryType(d.int8())
	d.float32s(g.Position[:])
	d.float32s(g.Quaternion[:])
	d.float32s(g.Color[:])
	g.StringData = d.string()
	n := d.count("num_float_data", 4)
	g.NumFloatData = int32(n)
	g.FloatData = make([]float32, n)
	d.float32s(g.FloatData)
}

// ViewerLinkData is lcmt_viewer_link_data: a named link with its geometries.
type ViewerLinkData struct {
	Name     string
	RobotNum int32
	NumGeom  int32
	Geom     []ViewerGeometryData
}

const minLinkSize = 5 + 4 + 4

func (l *ViewerLinkData) encode(e *encoder) error {
	if err := checkCount("num_geom", l.NumGeom, len(l.Geom)); err != nil {
		return errors.Wrapf(err, "link %q", l.Name)
	}
	e.string(l.Name)
	e.int32(l.RobotNum)
	e.int32(l.NumGeom)
	for i := 0; i < int(l.NumGeom); i++ {
		if err := l.Geom[i].encode(e); err != nil {
			return errors.Wrapf(err, "link %q geometry %d", l.Name, i)
		}
	}
	return nil
}

func (l *ViewerLinkData) decode(d *decoder) {
	l.Name = d.string()
	l.RobotNum = d.int32()
	n := d.count("num_geom", minGeometrySize)
	l.NumGeom = int32(n)
	l.Geom = make([]ViewerGeometryData, n)
	for i := range l.Geom {
		l.Geom[i].decode(d)
	}
}

// ViewerLoadRobot is lcmt_viewer_load_robot, published once per robot description.
type ViewerLoadRobot struct {
	NumLinks int32
	Link     []ViewerLinkData
}

// TypeName returns the LCM type name.
func (m *ViewerLoadRobot) TypeName() string { return loadRobotDef.name }

// Fingerprint returns the LCM type fingerprint.
func (m *ViewerLoadRobot) Fingerprint() uint64 { return loadRobotFingerprint }

// Encode returns the fingerprinted wire encoding.
func (m *ViewerLoadRobot) Encode() ([]byte, error) {
	if err := checkCount("num_links", m.NumLinks, len(m.Link)); err != nil {
		return nil, errors.Wrap(err, "encoding lcmt_viewer_load_robot")
	}
	e := newEncoder(loadRobotFingerprint)
	e.int32(m.NumLinks)
	for i := 0; i < int(m.NumLinks); i++ {
		if err := m.Link[i].encode(e); err != nil {
			return nil, errors.Wrap(err, "encoding lcmt_viewer_load_robot")
		}
	}
	return e.buf, nil
}

// Decode replaces m with the message decoded from data.
func (m *ViewerLoadRobot) Decode(data []byte) error {
	d := newDecoder(data, loadRobotFingerprint)
	n := d.count("num_links", minLinkSize)
	m.NumLinks = int32(n)
	m.Link = make([]ViewerLinkData, n)
	for i := range m.Link {
		m.Link[i].decode(d)
	}
	return d.finish(m.TypeName())
}

// DecodeViewerLoadRobot decodes an lcmt_viewer_load_robot payload.
func DecodeViewerLoadRobot(data []byte) (*ViewerLoadRobot, error) {
	m := &ViewerLoadRobot{}
	if err := m.Decode(data); err != nil {
		return nil, err
	}
	return m, nil
}

var loadRobotFingerprint = loadRobotDef.Fingerprint()
