package pushup

import (
	"fmt"
	"strings"
)

// Thresholds are the tunable cutoffs used to classify a frame.
type Thresholds struct {
	// ConfidenceThreshold is the score a joint must exceed to count as visible.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// ElbowDown is the elbow angle below which the arms are considered bent.
	ElbowDown float64 `json:"elbow_down_threshold" yaml:"elbow_down_threshold"`
	// ElbowUp is the elbow angle above which the arms are considered extended.
	ElbowUp float64 `json:"elbow_up_threshold" yaml:"elbow_up_threshold"`
	// BodyAligned is the minimum hip and knee angle for a straight body.
	BodyAligned float64 `json:"body_aligned_threshold" yaml:"body_aligned_threshold"`
}

const (
	DefaultConfidenceThreshold = 0.3
	DefaultElbowDown           = 90.0
	DefaultElbowUp             = 160.0
	DefaultBodyAligned         = 160.0
)

func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ElbowDown:           DefaultElbowDown,
		ElbowUp:             DefaultElbowUp,
		BodyAligned:         DefaultBodyAligned,
	}
}

// Validate reports every out-of-range threshold at once.
func (t Thresholds) Validate() error {
	var problems []string

	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
		problems = append(problems, fmt.Sprintf("confidence threshold must be between 0 and 1, got %g", t.ConfidenceThreshold))
	}
	if t.ElbowDown <= 0 || t.ElbowDown > 180 {
		problems = append(problems, fmt.Sprintf("elbow down threshold must be in (0, 180], got %g", t.ElbowDown))
	}
	if t.ElbowUp <= 0 || t.ElbowUp > 180 {
		problems = append(problems, fmt.Sprintf("elbow up threshold must be in (0, 180], got %g", t.ElbowUp))
	}
	if t.ElbowDown >= t.ElbowUp {
		problems = append(problems, fmt.Sprintf("elbow down threshold (%g) must be below elbow up threshold (%g)", t.ElbowDown, t.ElbowUp))
	}
	if t.BodyAligned <= 0 || t.BodyAligned > 180 {
		problems = append(problems, fmt.Sprintf("body aligned threshold must be in (0, 180], got %g", t.BodyAligned))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid thresholds: %s", strings.Join(problems, ", "))
	}
	return nil
}
