package translate

import (
	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/lcmtypes"
)

// shapeHandler builds a shape from the float parameters and string data of a geometry.
type shapeHandler func(params []float32, data string) (ignmsgs.Shape, error)

// shapeHandlers must hold an entry for every value of lcmtypes.KnownGeometryTypes.
var shapeHandlers = map[lcmtypes.GeometryType]shapeHandler{
	lcmtypes.GeometryBox: func(p []float32, _ string) (ignmsgs.Shape, error) {
		if err := arity(lcmtypes.GeometryBox, p, 3); err != nil {
			return nil, err
		}
		return ignmsgs.Box{Size: vec3(p)}, nil
	},
	lcmtypes.GeometrySphere: func(p []float32, _ string) (ignmsgs.Shape, error) {
		if err := arity(lcmtypes.GeometrySphere, p, 1); err != nil {
			return nil, err
		}
		return ignmsgs.Sphere{Radius: float64(p[0])}, nil
	},
	lcmtypes.GeometryCylinder: func(p []float32, _ string) (ignmsgs.Shape, error) {
		if err := arity(lcmtypes.GeometryCylinder, p, 2); err != nil {
			return nil, err
		}
		return ignmsgs.Cylinder{Radius: float64(p[0]), Length: float64(p[1])}, nil
	},
	lcmtypes.GeometryCapsule: func(p []float32, _ string) (ignmsgs.Shape, error) {
		if err := arity(lcmtypes.GeometryCapsule, p, 2); err != nil {
			return nil, err
		}
		return ignmsgs.Capsule{Radius: float64(p[0]), Length: float64(p[1])}, nil
	},
	lcmtypes.GeometryEllipsoid: func(p []float32, _ string) (ignmsgs.Shape, error) {
		if err := arity(lcmtypes.GeometryEllipsoid, p, 3); err != nil {
			return nil, err
		}
		return ignmsgs.Ellipsoid{Radii: vec3(p)}, nil
	},
	lcmtypes.GeometryMesh: func(p []float32, filename string) (ignmsgs.Shape, error) {
		if filename == "" {
			return nil, NewMalformedInputError("string_data", "mesh without a filename")
		}
		scale := ignmsgs.Vector3d{X: 1, Y: 1, Z: 1}
		switch len(p) {
		case 0:
		case 3:
			scale = vec3(p)
		default:
			return nil, NewMalformedInputError("float_data", "mesh takes 0 or 3 scale values, got %d", len(p))
		}
		return ignmsgs.Mesh{Filename: filename, Scale: scale}, nil
	},
}

func arity(kind lcmtypes.GeometryType, p []float32, want int) error {
	if len(p) != want {
		return NewMalformedInputError("float_data", "%s takes %d values, got %d", kind, want, len(p))
	}
	return nil
}

func vec3(p []float32) ignmsgs.Vector3d {
	return ignmsgs.NewVector3d(vector([3]float32{p[0], p[1], p[2]}))
}
