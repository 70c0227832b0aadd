// Package samples builds viewer messages for tests and for exercising a running bridge.
package samples

import (
	"go.viam.com/lcmbridge/lcmtypes"
)

// Identity is the identity rotation in Drake's w,x,y,z order.
var Identity = [4]float32{1, 0, 0, 0}

// White is opaque white.
var White = [4]float32{1, 1, 1, 1}

// NewBox returns box geometry with the given size at the origin.
func NewBox(x, y, z float32) lcmtypes.ViewerGeometryData {
	return lcmtypes.ViewerGeometryData{
		Type:         lcmtypes.GeometryBox,
		Quaternion:   Identity,
		Color:        White,
		NumFloatData: 3,
		FloatData:    []float32{x, y, z},
	}
}

// NewSphere returns sphere geometry with the given radius at the origin.
func NewSphere(radius float32) lcmtypes.ViewerGeometryData {
	return lcmtypes.ViewerGeometryData{
		Type:         lcmtypes.GeometrySphere,
		Quaternion:   Identity,
		Color:        White,
		NumFloatData: 1,
		FloatData:    []float32{radius},
	}
}

// NewGeometry returns geometry of any kind carrying the given parameters.
func NewGeometry(kind lcmtypes.GeometryType, params ...float32) lcmtypes.ViewerGeometryData {
	return lcmtypes.ViewerGeometryData{
		Type:         kind,
		Quaternion:   Identity,
		Color:        White,
		NumFloatData: int32(len(params)),
		FloatData:    append([]float32{}, params...),
	}
}

// NewLink returns a link holding the given geometries.
func NewLink(name string, robot int32, geoms ...lcmtypes.ViewerGeometryData) lcmtypes.ViewerLinkData {
	return lcmtypes.ViewerLinkData{
		Name:     name,
		RobotNum: robot,
		NumGeom:  int32(len(geoms)),
		Geom:     geoms,
	}
}

// NewLoadRobot returns a load robot message holding the given links.
func NewLoadRobot(links ...lcmtypes.ViewerLinkData) *lcmtypes.ViewerLoadRobot {
	return &lcmtypes.ViewerLoadRobot{NumLinks: int32(len(links)), Link: links}
}

// ChassisFloor is the single link car body the simulator publishes: a 3.8808 x 0.75 x 0.030921 box.
func ChassisFloor() *lcmtypes.ViewerLoadRobot {
	return NewLoadRobot(NewLink("chassis_floor", 0, NewBox(3.8808, 0.75, 0.030921)))
}

// SampleCar returns a small multi link robot using every supported shape.
func SampleCar() *lcmtypes.ViewerLoadRobot {
	mesh := NewGeometry(lcmtypes.GeometryMesh)
	mesh.StringData = "package://car/body.obj"
	return NewLoadRobot(
		NewLink("chassis_floor", 0, NewBox(3.8808, 0.75, 0.030921), mesh),
		NewLink("left_wheel", 0, NewGeometry(lcmtypes.GeometryCylinder, 0.3, 0.2)),
		NewLink("right_wheel", 0, NewGeometry(lcmtypes.GeometryCylinder, 0.3, 0.2)),
		NewLink("antenna", 0,
			NewGeometry(lcmtypes.GeometryCapsule, 0.01, 0.5),
			NewSphere(0.05),
			NewGeometry(lcmtypes.GeometryEllipsoid, 0.1, 0.2, 0.3)),
	)
}

// DrawFor returns a draw message placing every link of the robot at the origin.
func DrawFor(robot *lcmtypes.ViewerLoadRobot, timestampMillis int64) *lcmtypes.ViewerDraw {
	draw := &lcmtypes.ViewerDraw{Timestamp: timestampMillis, NumLinks: robot.NumLinks}
	for _, link := range robot.Link[:robot.NumLinks] {
		draw.LinkName = append(draw.LinkName, link.Name)
		draw.RobotNum = append(draw.RobotNum, link.RobotNum)
		draw.Position = append(draw.Position, [3]float32{})
		draw.Quaternion = append(draw.Quaternion, Identity)
	}
	return draw
}
