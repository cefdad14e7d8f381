// Package pushup turns per-frame 2D poses into a push-up rep count with form
// feedback.
//
// A Detector is not safe for concurrent use. Callers that receive frames
// from more than one goroutine must serialize calls to Process and Reset.
package pushup

import (
	"errors"
	"fmt"

	"github.com/san-kum/pushup-cv/server/models"
)

const ExerciseName = "pushup"

// ErrInvariantViolation means the visibility filter accepted a side whose
// joints could not then be looked up. It points at a bug, not bad input.
var ErrInvariantViolation = errors.New("pushup: visibility and joint lookup disagree")

type Detector struct {
	thresholds Thresholds
	state      models.DetectionState
	status     models.ExerciseStatus
}

// NewDetector returns a detector in its initial state. Thresholds are used
// as given; call Validate first when they come from user input.
func NewDetector(thresholds Thresholds) *Detector {
	return &Detector{
		thresholds: thresholds,
		state:      initialState(),
		status:     initialStatus(FeedbackStart),
	}
}

func initialState() models.DetectionState {
	return models.DetectionState{PreviousPhase: models.PhaseUnknown}
}

func initialStatus(feedback string) models.ExerciseStatus {
	return models.ExerciseStatus{
		CurrentPhase: models.PhaseUnknown,
		FormQuality:  models.FormUnknown,
		Feedback:     feedback,
	}
}

func (d *Detector) Exercise() string { return ExerciseName }

func (d *Detector) Thresholds() Thresholds { return d.thresholds }

func (d *Detector) Status() models.ExerciseStatus { return d.status }

func (d *Detector) State() models.DetectionState { return d.state }

// Process consumes one frame worth of poses. Only the first pose is used.
//
// Missing poses and partially visible bodies are not errors: the returned
// status keeps the last phase, count and angles and explains the problem in
// Feedback. A non-nil error is only returned for ErrInvariantViolation, in
// which case the state is left untouched.
func (d *Detector) Process(poses []models.Pose) (models.ExerciseStatus, error) {
	if len(poses) == 0 {
		return d.degrade(FeedbackNoPose), nil
	}

	joints := poses[0].Keypoints
	vis := CheckVisibility(joints, d.thresholds.ConfidenceThreshold)
	if !vis.Any() {
		return d.degrade(FeedbackNotVisible), nil
	}

	m, err := measure(joints, vis)
	if err != nil {
		status := d.status
		status.FormQuality = models.FormUnknown
		status.Feedback = FeedbackInternal
		return status, fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}

	previous := d.state.PreviousPhase
	c := Classify(m.ElbowAngle, m.Straight(d.thresholds.BodyAligned), previous, d.thresholds)

	feedback := c.Feedback
	if previous == models.PhaseMovingUp && c.Phase == models.PhaseUp {
		d.state.RepCount++
		feedback = FeedbackGoodRep
	}
	d.state.PreviousPhase = c.Phase

	d.status = models.ExerciseStatus{
		RepCount:       d.state.RepCount,
		CurrentPhase:   c.Phase,
		FormQuality:    c.Form,
		Feedback:       feedback,
		ElbowAngle:     m.ElbowAngle,
		UpperBodyAngle: m.UpperBodyAngle,
		LowerBodyAngle: m.LowerBodyAngle,
	}
	return d.status, nil
}

func (d *Detector) degrade(feedback string) models.ExerciseStatus {
	d.status.FormQuality = models.FormUnknown
	d.status.Feedback = feedback
	d.state.PreviousPhase = d.status.CurrentPhase
	return d.status
}

// Reset returns the detector to its initial state. Calling it repeatedly
// yields the same status.
func (d *Detector) Reset() models.ExerciseStatus {
	d.state = initialState()
	d.status = initialStatus(FeedbackReset)
	return d.status
}
