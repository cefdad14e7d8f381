package pushup

import (
	"testing"

	"github.com/san-kum/pushup-cv/server/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds()

	tests := []struct {
		name     string
		elbow    float64
		straight bool
		previous models.ExercisePhase
		want     Classification
	}{
		{"down straight", 60, true, models.PhaseUnknown, Classification{models.PhaseDown, models.FormGood, FeedbackGoodForm}},
		{"down sagging", 60, false, models.PhaseUp, Classification{models.PhaseDown, models.FormWarning, FeedbackStraightBack}},
		{"up straight", 170, true, models.PhaseMovingUp, Classification{models.PhaseUp, models.FormGood, FeedbackGoodForm}},
		{"up sagging", 170, false, models.PhaseDown, Classification{models.PhaseUp, models.FormWarning, FeedbackStraightBack}},
		{"band after up", 120, true, models.PhaseUp, Classification{models.PhaseMovingDown, models.FormUnknown, FeedbackMoving}},
		{"band after down", 120, true, models.PhaseDown, Classification{models.PhaseMovingUp, models.FormUnknown, FeedbackMoving}},
		{"band after unknown", 120, true, models.PhaseUnknown, Classification{models.PhaseUnknown, models.FormUnknown, FeedbackMoving}},
		{"band keeps moving-up", 120, false, models.PhaseMovingUp, Classification{models.PhaseMovingUp, models.FormUnknown, FeedbackMoving}},
		{"band keeps moving-down", 120, false, models.PhaseMovingDown, Classification{models.PhaseMovingDown, models.FormUnknown, FeedbackMoving}},
		{"exactly elbow down is band", th.ElbowDown, true, models.PhaseDown, Classification{models.PhaseMovingUp, models.FormUnknown, FeedbackMoving}},
		{"exactly elbow up is band", th.ElbowUp, true, models.PhaseUp, Classification{models.PhaseMovingDown, models.FormUnknown, FeedbackMoving}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.elbow, tt.straight, tt.previous, th))
		})
	}
}

func TestMeasurementsStraight(t *testing.T) {
	t.Parallel()

	assert.True(t, Measurements{UpperBodyAngle: 170, LowerBodyAngle: 175}.Straight(160))
	assert.False(t, Measurements{UpperBodyAngle: 150, LowerBodyAngle: 175}.Straight(160))
	assert.False(t, Measurements{UpperBodyAngle: 170, LowerBodyAngle: 160}.Straight(160))
}
