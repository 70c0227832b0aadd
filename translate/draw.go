package translate

import (
	"time"

	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/lcmtypes"
)

// Draw translates a draw message into a stamped pose list, one pose per link named after the
// link and identified by its robot number. The draw timestamp is in milliseconds.
func (t *Translator) Draw(d *lcmtypes.ViewerDraw) (*ignmsgs.PoseV, error) {
	if d == nil {
		return nil, NewMalformedInputError("draw", "missing")
	}
	names, err := declared("link_name", d.NumLinks, d.LinkName)
	if err != nil {
		return nil, err
	}
	robots, err := declared("robot_num", d.NumLinks, d.RobotNum)
	if err != nil {
		return nil, err
	}
	positions, err := declared("position", d.NumLinks, d.Position)
	if err != nil {
		return nil, err
	}
	orientations, err := declared("quaternion", d.NumLinks, d.Quaternion)
	if err != nil {
		return nil, err
	}

	poses := &ignmsgs.PoseV{
		Stamp: time.UnixMilli(d.Timestamp),
		Poses: make([]ignmsgs.Pose, 0, len(names)),
	}
	for i, name := range names {
		if robots[i] < 0 {
			return nil, NewMalformedInputError("robot_num", "negative robot number %d for link %q", robots[i], name)
		}
		poses.Poses = append(poses.Poses, ignmsgs.Pose{
			Name:        name,
			ID:          uint32(robots[i]),
			Position:    ignmsgs.NewVector3d(vector(positions[i])),
			Orientation: ignmsgs.NewQuaternion(t.orientation(orientations[i])),
		})
	}
	return poses, nil
}
