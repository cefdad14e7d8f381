package pushup

import (
	"math"

	"github.com/san-kum/pushup-cv/server/models"
)

const segment = 50.0

// sideJointsFor builds a side-view pose whose elbow bends to elbowDeg. With
// sagging set the hips drop so the upper body angle falls well below 160.
func sideJointsFor(s side, elbowDeg float64, sagging bool, score *float64, xOffset float64) []models.Joint {
	rad := elbowDeg * math.Pi / 180
	shoulder := models.Point{X: xOffset, Y: 0}
	elbow := models.Point{X: xOffset, Y: segment}
	wrist := models.Point{X: elbow.X + segment*math.Sin(rad), Y: elbow.Y - segment*math.Cos(rad)}

	hipY := 0.0
	if sagging {
		hipY = 40
	}

	points := map[string]models.Point{
		s.shoulder: shoulder,
		s.elbow:    elbow,
		s.wrist:    wrist,
		s.hip:      {X: xOffset + 100, Y: hipY},
		s.knee:     {X: xOffset + 150, Y: 0},
		s.ankle:    {X: xOffset + 200, Y: 0},
	}

	joints := make([]models.Joint, 0, len(points))
	for _, name := range s.names() {
		p := points[name]
		joints = append(joints, models.Joint{Name: name, X: p.X, Y: p.Y, Score: score})
	}
	return joints
}

func bothSides(elbowDeg float64, sagging bool) []models.Pose {
	joints := append(
		sideJointsFor(leftSide, elbowDeg, sagging, models.Score(0.9), 0),
		sideJointsFor(rightSide, elbowDeg, sagging, models.Score(0.9), 0)...,
	)
	joints = append(joints, models.Joint{Name: models.Nose, X: -10, Y: -10, Score: models.Score(0.99)})
	return []models.Pose{{Keypoints: joints}}
}

func leftOnly(elbowDeg float64) []models.Pose {
	joints := append(
		sideJointsFor(leftSide, elbowDeg, false, models.Score(0.9), 0),
		sideJointsFor(rightSide, elbowDeg, false, models.Score(0.1), 0)...,
	)
	return []models.Pose{{Keypoints: joints}}
}
