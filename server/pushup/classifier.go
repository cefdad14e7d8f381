package pushup

import "github.com/san-kum/pushup-cv/server/models"

const (
	FeedbackGoodForm     = "Good form!"
	FeedbackStraightBack = "Keep your back straight!"
	FeedbackMoving       = "Moving..."
	FeedbackGoodRep      = "Good rep, keep going!"
	FeedbackNoPose       = "No pose detected"
	FeedbackNotVisible   = "Please make sure your entire body is captured by the camera"
	FeedbackStart        = "Get in position to start"
	FeedbackReset        = "Counter Reset. Please get in position to start"
	FeedbackInternal     = "Unable to read pose, please hold still"
)

// Classification is the phase and form verdict for a single frame.
type Classification struct {
	Phase    models.ExercisePhase
	Form     models.FormQuality
	Feedback string
}

// Classify maps an elbow angle and body straightness to a phase. Angles
// inside the hysteresis band between ElbowDown and ElbowUp keep the phase
// anchored to the previous one so the boundary does not chatter.
func Classify(elbow float64, straight bool, previous models.ExercisePhase, th Thresholds) Classification {
	switch {
	case elbow < th.ElbowDown:
		return graded(models.PhaseDown, straight)
	case elbow > th.ElbowUp:
		return graded(models.PhaseUp, straight)
	}

	next := previous
	switch previous {
	case models.PhaseUp:
		next = models.PhaseMovingDown
	case models.PhaseDown:
		next = models.PhaseMovingUp
	}

	return Classification{
		Phase:    next,
		Form:     models.FormUnknown,
		Feedback: FeedbackMoving,
	}
}

func graded(phase models.ExercisePhase, straight bool) Classification {
	if straight {
		return Classification{Phase: phase, Form: models.FormGood, Feedback: FeedbackGoodForm}
	}
	return Classification{Phase: phase, Form: models.FormWarning, Feedback: FeedbackStraightBack}
}
