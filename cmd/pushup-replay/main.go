// Package main provides pushup-replay, which runs recorded pose frames
// through the push-up counter offline.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/pushup-cv/server/config"
	"github.com/san-kum/pushup-cv/server/models"
	"github.com/san-kum/pushup-cv/server/pushup"
)

const maxLineSize = 4 * 1024 * 1024

type replayOptions struct {
	thresholds     pushup.Thresholds
	thresholdsFile string
	jsonOutput     bool
	verbose        bool
}

type frameLine struct {
	Frame  int                   `json:"frame"`
	Status models.ExerciseStatus `json:"status"`
	Error  string                `json:"error,omitempty"`
}

type summaryLine struct {
	Frames    int `json:"frames"`
	TotalReps int `json:"total_reps"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &replayOptions{thresholds: pushup.DefaultThresholds()}

	rootCmd := &cobra.Command{
		Use:          "pushup-replay [frames.jsonl]",
		Short:        "Count push-ups in a recorded pose stream",
		Long:         "Reads one JSON object per line ({\"poses\": [...]}) from a file or stdin and reports the counter state after every frame.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args)
		},
	}

	flags := rootCmd.Flags()
	flags.Float64Var(&opts.thresholds.ConfidenceThreshold, "confidence", pushup.DefaultConfidenceThreshold, "minimum keypoint score for a side to count as visible (0-1)")
	flags.Float64Var(&opts.thresholds.ElbowDown, "elbow-down", pushup.DefaultElbowDown, "elbow angle below which the body is down (degrees)")
	flags.Float64Var(&opts.thresholds.ElbowUp, "elbow-up", pushup.DefaultElbowUp, "elbow angle above which the body is up (degrees)")
	flags.Float64Var(&opts.thresholds.BodyAligned, "body-aligned", pushup.DefaultBodyAligned, "minimum body angle for a straight back (degrees)")
	flags.StringVar(&opts.thresholdsFile, "thresholds-file", "", "YAML thresholds file; explicit flags take precedence")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON lines instead of text")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log counter errors to stderr")

	return rootCmd
}

func runReplay(cmd *cobra.Command, opts *replayOptions, args []string) error {
	thresholds, err := resolveThresholds(cmd, opts)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync()
	}

	input := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open frames: %w", err)
		}
		defer f.Close()
		input = f
	}

	return replay(input, cmd.OutOrStdout(), pushup.NewDetector(thresholds), opts.jsonOutput, logger)
}

// resolveThresholds layers defaults, the thresholds file and explicitly set
// flags, in that order.
func resolveThresholds(cmd *cobra.Command, opts *replayOptions) (pushup.Thresholds, error) {
	if opts.thresholdsFile == "" {
		return opts.thresholds, opts.thresholds.Validate()
	}

	fromFile, err := config.LoadThresholds(opts.thresholdsFile, pushup.DefaultThresholds())
	if err != nil {
		return pushup.Thresholds{}, err
	}

	flags := cmd.Flags()
	applyFlag := func(name string, dst *float64, value float64) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	applyFlag("confidence", &fromFile.ConfidenceThreshold, opts.thresholds.ConfidenceThreshold)
	applyFlag("elbow-down", &fromFile.ElbowDown, opts.thresholds.ElbowDown)
	applyFlag("elbow-up", &fromFile.ElbowUp, opts.thresholds.ElbowUp)
	applyFlag("body-aligned", &fromFile.BodyAligned, opts.thresholds.BodyAligned)

	return fromFile, fromFile.Validate()
}

func replay(r io.Reader, w io.Writer, detector *pushup.Detector, jsonOutput bool, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	encoder := json.NewEncoder(w)

	frames := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame models.FrameRequest
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return fmt.Errorf("line %d: invalid frame: %w", lineNo, err)
		}

		frames++
		status, err := detector.Process(frame.Poses)
		out := frameLine{Frame: frames, Status: status}
		if err != nil {
			logger.Error("Counter rejected frame", zap.Int("frame", frames), zap.Error(err))
			out.Error = err.Error()
		}

		if jsonOutput {
			if err := encoder.Encode(out); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(w, "frame %d: phase=%s reps=%d form=%s elbow=%.1f %q\n",
			out.Frame, status.CurrentPhase, status.RepCount, status.FormQuality, status.ElbowAngle, status.Feedback)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}

	summary := summaryLine{Frames: frames, TotalReps: detector.Status().RepCount}
	if jsonOutput {
		return encoder.Encode(summary)
	}
	_, err := fmt.Fprintf(w, "total reps: %d (%d frames)\n", summary.TotalReps, summary.Frames)
	return err
}
