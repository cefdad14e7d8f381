package models

type ExercisePhase string

const (
	PhaseUnknown       ExercisePhase = "unknown"
	PhaseUp            ExercisePhase = "up"
	PhaseDown          ExercisePhase = "down"
	PhaseTransitioning ExercisePhase = "transitioning"
	PhaseMovingUp      ExercisePhase = "moving-up"
	PhaseMovingDown    ExercisePhase = "moving-down"
)

type FormQuality string

const (
	FormGood    FormQuality = "good"
	FormBad     FormQuality = "bad"
	FormWarning FormQuality = "warning"
	FormUnknown FormQuality = "unknown"
)

// ExerciseStatus is the per-frame snapshot handed back to callers. It is a
// value type; callers always receive a copy.
type ExerciseStatus struct {
	RepCount       int           `json:"rep_count"`
	CurrentPhase   ExercisePhase `json:"current_phase"`
	FormQuality    FormQuality   `json:"form_quality"`
	Feedback       string        `json:"feedback"`
	ElbowAngle     float64       `json:"elbow_angle"`
	UpperBodyAngle float64       `json:"upper_body_angle"`
	LowerBodyAngle float64       `json:"lower_body_angle"`
}

// DetectionState is the mutable part of a counting session.
type DetectionState struct {
	PreviousPhase ExercisePhase `json:"previous_phase"`
	RepCount      int           `json:"rep_count"`
}
