package samples

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/lcmbridge/lcmtypes"
)

func TestSampleCarRoundTrips(t *testing.T) {
	robot := SampleCar()
	data, err := robot.Encode()
	test.That(t, err, test.ShouldBeNil)
	decoded, err := lcmtypes.DecodeViewerLoadRobot(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, robot)
}

func TestDrawForMatchesRobot(t *testing.T) {
	robot := SampleCar()
	draw := DrawFor(robot, 1234)
	test.That(t, draw.NumLinks, test.ShouldEqual, robot.NumLinks)
	test.That(t, draw.LinkName, test.ShouldResemble, []string{"chassis_floor", "left_wheel", "right_wheel", "antenna"})
	test.That(t, draw.RobotNum, test.ShouldResemble, []int32{0, 0, 0, 0})
	test.That(t, draw.Timestamp, test.ShouldEqual, int64(1234))

	_, err := draw.Encode()
	test.That(t, err, test.ShouldBeNil)
}
