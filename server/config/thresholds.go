package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/san-kum/pushup-cv/server/pushup"
	"gopkg.in/yaml.v3"
)

const maxThresholdsFileSize = 64 * 1024

// thresholdsFile mirrors pushup.Thresholds with optional fields so a file
// may override only some of them.
type thresholdsFile struct {
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
	ElbowDown           *float64 `yaml:"elbow_down_threshold"`
	ElbowUp             *float64 `yaml:"elbow_up_threshold"`
	BodyAligned         *float64 `yaml:"body_aligned_threshold"`
}

// LoadThresholds reads a YAML thresholds file. Keys missing from the file keep
// the values in base. The merged result is validated.
func LoadThresholds(path string, base pushup.Thresholds) (pushup.Thresholds, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return base, fmt.Errorf("failed to stat thresholds file: %w", err)
	}
	if info.Size() > maxThresholdsFileSize {
		return base, fmt.Errorf("thresholds file too large: %d bytes (max %d)", info.Size(), maxThresholdsFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return base, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var file thresholdsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	merged := base
	if file.ConfidenceThreshold != nil {
		merged.ConfidenceThreshold = *file.ConfidenceThreshold
	}
	if file.ElbowDown != nil {
		merged.ElbowDown = *file.ElbowDown
	}
	if file.ElbowUp != nil {
		merged.ElbowUp = *file.ElbowUp
	}
	if file.BodyAligned != nil {
		merged.BodyAligned = *file.BodyAligned
	}

	if err := merged.Validate(); err != nil {
		return base, fmt.Errorf("invalid thresholds file %s: %w", cleanPath, err)
	}
	return merged, nil
}
