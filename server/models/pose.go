package models

// Joint names produced by MoveNet style pose estimators.
const (
	Nose          = "nose"
	LeftEye       = "left_eye"
	RightEye      = "right_eye"
	LeftEar       = "left_ear"
	RightEar      = "right_ear"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
	LeftElbow     = "left_elbow"
	RightElbow    = "right_elbow"
	LeftWrist     = "left_wrist"
	RightWrist    = "right_wrist"
	LeftHip       = "left_hip"
	RightHip      = "right_hip"
	LeftKnee      = "left_knee"
	RightKnee     = "right_knee"
	LeftAnkle     = "left_ankle"
	RightAnkle    = "right_ankle"
)

// Joint is a single named keypoint in video pixel space. Score is nil when
// the estimator did not report a confidence.
type Joint struct {
	Name  string   `json:"name" msgpack:"name"`
	X     float64  `json:"x" msgpack:"x"`
	Y     float64  `json:"y" msgpack:"y"`
	Score *float64 `json:"score,omitempty" msgpack:"score,omitempty"`
}

// Pose is every joint for one detected body in one frame.
type Pose struct {
	Keypoints []Joint  `json:"keypoints" msgpack:"keypoints"`
	Score     *float64 `json:"score,omitempty" msgpack:"score,omitempty"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Coords returns the joint position as a Point.
func (j Joint) Coords() Point {
	return Point{X: j.X, Y: j.Y}
}

// Confidence returns the joint score, or ok=false when it is absent.
func (j Joint) Confidence() (score float64, ok bool) {
	if j.Score == nil {
		return 0, false
	}
	return *j.Score, true
}

// Score is a convenience for building joints in tests and fixtures.
func Score(v float64) *float64 {
	return &v
}
