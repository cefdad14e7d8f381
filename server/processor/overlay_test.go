package processor

import (
	"testing"

	"github.com/san-kum/pushup-cv/server/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildOverlayEmpty(t *testing.T) {
	assert.Empty(t, BuildOverlay(nil))
}

func TestBuildOverlay(t *testing.T) {
	poses := []models.Pose{{Keypoints: []models.Joint{
		{Name: models.LeftShoulder, X: 1, Y: 1, Score: models.Score(0.9)},
		{Name: models.LeftElbow, X: 2, Y: 2, Score: models.Score(0.3)},
		{Name: models.LeftWrist, X: 3, Y: 3, Score: models.Score(0.1)},
		{Name: models.LeftHip, X: 4, Y: 4},
	}}}

	var keypoints, segments []string
	for _, a := range BuildOverlay(poses) {
		switch a.Type {
		case "keypoint":
			keypoints = append(keypoints, a.Label)
		case "segment":
			segments = append(segments, a.Label)
			assert.Len(t, a.Points, 2)
		}
	}

	// exactly 0.3 is not drawn as a keypoint but still joins a bone
	assert.Equal(t, []string{models.LeftShoulder}, keypoints)
	assert.ElementsMatch(t, []string{
		models.LeftShoulder + "-" + models.LeftElbow,
		models.LeftShoulder + "-" + models.LeftHip,
	}, segments)
}
