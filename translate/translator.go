// Package translate converts Drake viewer messages into ignition-msgs records.
//
// Translation is pure: a Translator holds only its options and may be shared by any number of
// goroutines.
package translate

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/lcmtypes"
)

// A Translator converts viewer messages. The zero value is not usable, call NewTranslator.
type Translator struct {
	policy   UnsupportedShapePolicy
	order    QuaternionOrder
	handlers map[lcmtypes.GeometryType]shapeHandler
}

// NewTranslator returns a Translator with the skip policy and Drake's w,x,y,z quaternion order
// unless options say otherwise.
func NewTranslator(opts ...Option) *Translator {
	t := &Translator{
		policy:   PolicySkip,
		order:    OrderWXYZ,
		handlers: shapeHandlers,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the unsupported shape policy in effect.
func (t *Translator) Policy() UnsupportedShapePolicy {
	return t.policy
}

// Geometry translates one geometry into a visual. Position, orientation and color are always
// copied; the shape is chosen by the geometry type.
func (t *Translator) Geometry(g *lcmtypes.ViewerGeometryData) (ignmsgs.Visual, error) {
	if g == nil {
		return ignmsgs.Visual{}, NewMalformedInputError("geometry", "missing")
	}
	params, err := declared("num_float_data", g.NumFloatData, g.FloatData)
	if err != nil {
		return ignmsgs.Visual{}, err
	}
	handler, ok := t.handlers[g.Type]
	if !ok {
		return ignmsgs.Visual{}, NewUnsupportedShapeError(g.Type)
	}
	shape, err := handler(params, g.StringData)
	if err != nil {
		return ignmsgs.Visual{}, err
	}

	return ignmsgs.Visual{
		Pose: ignmsgs.Pose{
			Position:    ignmsgs.NewVector3d(vector(g.Position)),
			Orientation: ignmsgs.NewQuaternion(t.orientation(g.Quaternion)),
		},
		Material: ignmsgs.Material{
			Diffuse: ignmsgs.Color{R: g.Color[0], G: g.Color[1], B: g.Color[2], A: g.Color[3]},
		},
		Geometry: shape,
	}, nil
}

// Link translates a link, keeping the order of its geometries. Under the skip policy a
// *PartialError is returned together with a usable link when some geometries were left out.
func (t *Translator) Link(l *lcmtypes.ViewerLinkData) (ignmsgs.Link, error) {
	if l == nil {
		return ignmsgs.Link{}, NewMalformedInputError("link", "missing")
	}
	link, partial, err := t.link(l)
	if err != nil {
		return ignmsgs.Link{}, err
	}
	return link, partial.orNil()
}

func (t *Translator) link(l *lcmtypes.ViewerLinkData) (ignmsgs.Link, *PartialError, error) {
	geoms, err := declared("num_geom", l.NumGeom, l.Geom)
	if err != nil {
		return ignmsgs.Link{}, nil, errors.Wrapf(err, "link %q", l.Name)
	}

	link := ignmsgs.Link{Name: l.Name, Visuals: make([]ignmsgs.Visual, 0, len(geoms))}
	partial := &PartialError{}
	for i := range geoms {
		visual, err := t.Geometry(&geoms[i])
		if err == nil {
			link.Visuals = append(link.Visuals, visual)
			continue
		}
		err = errors.Wrapf(err, "link %q geometry %d", l.Name, i)
		var unsupported *UnsupportedShapeError
		if t.policy == PolicySkip && errors.As(err, &unsupported) {
			partial.add(err)
			continue
		}
		return ignmsgs.Link{}, nil, err
	}
	return link, partial, nil
}

// Model translates a load robot message, keeping link order. The robot index of each link is not
// carried over. Partial results are reported as in Link.
func (t *Translator) Model(m *lcmtypes.ViewerLoadRobot) (*ignmsgs.Model, error) {
	if m == nil {
		return nil, NewMalformedInputError("load_robot", "missing")
	}
	links, err := declared("num_links", m.NumLinks, m.Link)
	if err != nil {
		return nil, err
	}

	model := &ignmsgs.Model{Links: make([]ignmsgs.Link, 0, len(links))}
	partial := &PartialError{}
	for i := range links {
		link, linkPartial, err := t.link(&links[i])
		if err != nil {
			return nil, err
		}
		partial.add(linkPartial.Skipped...)
		model.Links = append(model.Links, link)
	}
	return model, partial.orNil()
}

func (t *Translator) orientation(q [4]float32) quat.Number {
	if t.order == OrderXYZW {
		return quat.Number{Real: float64(q[3]), Imag: float64(q[0]), Jmag: float64(q[1]), Kmag: float64(q[2])}
	}
	return quat.Number{Real: float64(q[0]), Imag: float64(q[1]), Jmag: float64(q[2]), Kmag: float64(q[3])}
}

func vector(v [3]float32) r3.Vector {
	return r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// declared returns the first n elements of s, where n is a count carried in the message. Extra
// elements are ignored; a count the data cannot satisfy is malformed.
func declared[T any](field string, n int32, s []T) ([]T, error) {
	if n < 0 {
		return nil, NewMalformedInputError(field, "negative count %d", n)
	}
	if int(n) > len(s) {
		return nil, NewMalformedInputError(field, "count %d exceeds the %d elements present", n, len(s))
	}
	return s[:n], nil
}
