package lcmtypes

import (
	"github.com/pkg/errors"
)

// ViewerDraw is lcmt_viewer_draw: the current pose of every link, published each frame.
type ViewerDraw struct {
	// Timestamp in milliseconds.
	Timestamp  int64
	NumLinks   int32
	LinkName   []string
	RobotNum   []int32
	Position   [][3]float32
	Quaternion [][4]float32
}

// TypeName returns the LCM type name.
func (m *ViewerDraw) TypeName() string { return drawDef.name }

// Fingerprint returns the LCM type fingerprint.
func (m *ViewerDraw) Fingerprint() uint64 { return drawFingerprint }

// Encode returns the fingerprinted wire encoding.
func (m *ViewerDraw) Encode() ([]byte, error) {
	for _, c := range []struct {
		name   string
		actual int
	}{
		{"link_name", len(m.LinkName)},
		{"robot_num", len(m.RobotNum)},
		{"position", len(m.Position)},
		{"quaternion", len(m.Quaternion)},
	} {
		if err := checkCount("num_links", m.NumLinks, c.actual); err != nil {
			return nil, errors.Wrapf(err, "encoding lcmt_viewer_draw %s", c.name)
		}
	}

	n := int(m.NumLinks)
	e := newEncoder(drawFingerprint)
	e.int64(m.Timestamp)
	e.int32(m.NumLinks)
	for i := 0; i < n; i++ {
		e.string(m.LinkName[i])
	}
	for i := 0; i < n; i++ {
		e.int32(m.RobotNum[i])
	}
	for i := 0; i < n; i++ {
		e.float32s(m.Position[i][:])
	}
	for i := 0; i < n; i++ {
		e.float32s(m.Quaternion[i][:])
	}
	return e.buf, nil
}

// Decode replaces m with the message decoded from data.
func (m *ViewerDraw) Decode(data []byte) error {
	d := newDecoder(data, drawFingerprint)
	m.Timestamp = d.int64()
	// each link needs at least a name, a robot number and seven floats
	n := d.count("num_links", 5+4+7*4)
	m.NumLinks = int32(n)
	m.LinkName = make([]string, n)
	for i := range m.LinkName {
		m.LinkName[i] = d.string()
	}
	m.RobotNum = make([]int32, n)
	for i := range m.RobotNum {
		m.RobotNum[i] = d.int32()
	}
	m.Position = make([][3]float32, n)
	for i := range m.Position {
		d.float32s(m.Position[i][:])
	}
	m.Quaternion = make([][4]float32, n)
	for i := range m.Quaternion {
		d.float32s(m.Quaternion[i][:])
	}
	return d.finish(m.TypeName())
}

// DecodeViewerDraw decodes an lcmt_viewer_draw payload.
func DecodeViewerDraw(data []byte) (*ViewerDraw, error) {
	m := &ViewerDraw{}
	if err := m.Decode(data); err != nil {
		return nil, err
	}
	return m, nil
}

var drawFingerprint = drawDef.Fingerprint()
