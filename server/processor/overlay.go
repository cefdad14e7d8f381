package processor

import "github.com/san-kum/pushup-cv/server/models"

const overlayThreshold = 0.3

// skeleton lists the MoveNet joint pairs joined by a bone.
var skeleton = [][2]string{
	{models.Nose, models.LeftEye},
	{models.Nose, models.RightEye},
	{models.LeftEye, models.LeftEar},
	{models.RightEye, models.RightEar},
	{models.LeftShoulder, models.RightShoulder},
	{models.LeftShoulder, models.LeftElbow},
	{models.LeftShoulder, models.LeftHip},
	{models.RightShoulder, models.RightElbow},
	{models.RightShoulder, models.RightHip},
	{models.LeftElbow, models.LeftWrist},
	{models.RightElbow, models.RightWrist},
	{models.LeftHip, models.RightHip},
	{models.LeftHip, models.LeftKnee},
	{models.RightHip, models.RightKnee},
	{models.LeftKnee, models.LeftAnkle},
	{models.RightKnee, models.RightAnkle},
}

// BuildOverlay returns drawing hints for the first pose: confident keypoints
// and the bones between them. Keypoints need a reported score above the
// threshold; bone ends without a score are assumed confident.
func BuildOverlay(poses []models.Pose) []models.Annotation {
	annotations := []models.Annotation{}
	if len(poses) == 0 {
		return annotations
	}

	byName := make(map[string]models.Joint, len(poses[0].Keypoints))
	for _, joint := range poses[0].Keypoints {
		if _, seen := byName[joint.Name]; !seen {
			byName[joint.Name] = joint
		}

		if score, ok := joint.Confidence(); ok && score > overlayThreshold {
			annotations = append(annotations, models.Annotation{
				Type:       "keypoint",
				X:          joint.X,
				Y:          joint.Y,
				Label:      joint.Name,
				Confidence: score,
				Color:      "red",
			})
		}
	}

	for _, bone := range skeleton {
		a, okA := byName[bone[0]]
		b, okB := byName[bone[1]]
		if !okA || !okB {
			continue
		}

		scoreA, scoreB := boneScore(a), boneScore(b)
		if scoreA < overlayThreshold || scoreB < overlayThreshold {
			continue
		}

		annotations = append(annotations, models.Annotation{
			Type:       "segment",
			X:          a.X,
			Y:          a.Y,
			Points:     []models.Point{a.Coords(), b.Coords()},
			Label:      bone[0] + "-" + bone[1],
			Confidence: min(scoreA, scoreB),
			Color:      "red",
		})
	}

	return annotations
}

func boneScore(j models.Joint) float64 {
	if score, ok := j.Confidence(); ok {
		return score
	}
	return 1
}
