package pushup

import (
	"math"

	"github.com/san-kum/pushup-cv/server/models"
)

type side struct {
	shoulder, elbow, wrist, hip, knee, ankle string
}

var (
	leftSide = side{
		shoulder: models.LeftShoulder,
		elbow:    models.LeftElbow,
		wrist:    models.LeftWrist,
		hip:      models.LeftHip,
		knee:     models.LeftKnee,
		ankle:    models.LeftAnkle,
	}
	rightSide = side{
		shoulder: models.RightShoulder,
		elbow:    models.RightElbow,
		wrist:    models.RightWrist,
		hip:      models.RightHip,
		knee:     models.RightKnee,
		ankle:    models.RightAnkle,
	}
)

func (s side) names() []string {
	return []string{s.shoulder, s.elbow, s.wrist, s.hip, s.knee, s.ankle}
}

// Visibility says which body sides have every required joint above the
// confidence threshold. The two flags are independent.
type Visibility struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

func (v Visibility) Any() bool  { return v.Left || v.Right }
func (v Visibility) Both() bool { return v.Left && v.Right }

func CheckVisibility(joints []models.Joint, threshold float64) Visibility {
	return Visibility{
		Left:  sideVisible(joints, leftSide, threshold),
		Right: sideVisible(joints, rightSide, threshold),
	}
}

func sideVisible(joints []models.Joint, s side, threshold float64) bool {
	for _, name := range s.names() {
		joint, ok := findJoint(joints, name)
		if !ok {
			return false
		}
		score, ok := joint.Confidence()
		if !ok || score <= threshold {
			return false
		}
		if !finite(joint.X) || !finite(joint.Y) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
