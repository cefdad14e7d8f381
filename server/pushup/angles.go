package pushup

import (
	"github.com/san-kum/pushup-cv/server/geometry"
	"github.com/san-kum/pushup-cv/server/models"
)

// Measurements are the angles derived from one visible pose.
type Measurements struct {
	ElbowAngle     float64
	UpperBodyAngle float64
	LowerBodyAngle float64
}

// Straight reports whether both torso and legs are close to a line.
func (m Measurements) Straight(bodyAligned float64) bool {
	return m.UpperBodyAngle > bodyAligned && m.LowerBodyAngle > bodyAligned
}

type sideJoints struct {
	shoulder, elbow, wrist, hip, knee, ankle models.Point
}

func lookupSide(joints []models.Joint, s side) (sideJoints, error) {
	var out sideJoints
	targets := []*models.Point{&out.shoulder, &out.elbow, &out.wrist, &out.hip, &out.knee, &out.ankle}

	for i, name := range s.names() {
		joint, err := GetJoint(joints, name)
		if err != nil {
			return sideJoints{}, err
		}
		*targets[i] = joint.Coords()
	}
	return out, nil
}

func (j sideJoints) elbowAngle() float64 {
	return geometry.Angle(&j.shoulder, &j.elbow, &j.wrist)
}

// measure derives the elbow, upper body and lower body angles for the sides
// marked visible. It must only be called when at least one side is visible.
func measure(joints []models.Joint, vis Visibility) (Measurements, error) {
	var left, right sideJoints
	var err error

	if vis.Left {
		if left, err = lookupSide(joints, leftSide); err != nil {
			return Measurements{}, err
		}
	}
	if vis.Right {
		if right, err = lookupSide(joints, rightSide); err != nil {
			return Measurements{}, err
		}
	}

	var ref sideJoints
	var elbow float64

	switch {
	case vis.Both():
		elbow = (left.elbowAngle() + right.elbowAngle()) / 2
		ref = sideJoints{
			shoulder: geometry.Midpoint(left.shoulder, right.shoulder),
			hip:      geometry.Midpoint(left.hip, right.hip),
			knee:     geometry.Midpoint(left.knee, right.knee),
			ankle:    geometry.Midpoint(left.ankle, right.ankle),
		}
	case vis.Left:
		elbow = left.elbowAngle()
		ref = left
	default:
		elbow = right.elbowAngle()
		ref = right
	}

	return Measurements{
		ElbowAngle:     elbow,
		UpperBodyAngle: geometry.Angle(&ref.shoulder, &ref.hip, &ref.knee),
		LowerBodyAngle: geometry.Angle(&ref.hip, &ref.knee, &ref.ankle),
	}, nil
}
