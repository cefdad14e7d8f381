package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/pushup-cv/server/pushup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, pushup.ExerciseName, cfg.Exercise.Name)
	assert.Equal(t, pushup.DefaultThresholds(), cfg.Exercise.Thresholds)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.NoError(t, cfg.ValidateConfig(zap.NewNop()))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ELBOW_DOWN_THRESHOLD", "80")
	t.Setenv("ELBOW_UP_THRESHOLD", "150.5")
	t.Setenv("CONFIDENCE_THRESHOLD", "not-a-number")
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 80.0, cfg.Exercise.Thresholds.ElbowDown)
	assert.Equal(t, 150.5, cfg.Exercise.Thresholds.ElbowUp)
	assert.Equal(t, pushup.DefaultConfidenceThreshold, cfg.Exercise.Thresholds.ConfidenceThreshold)
	assert.Equal(t, 90*time.Second, cfg.Session.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
}

func TestValidateConfigCollectsErrors(t *testing.T) {
	cfg := LoadConfig()
	cfg.Server.Port = 0
	cfg.Session.MaxSessions = 0
	cfg.Exercise.Name = "squat"
	cfg.Exercise.Thresholds.ElbowDown = 170
	cfg.MQTT.Broker = "localhost:1883"
	cfg.MQTT.QoS = 3

	err := cfg.ValidateConfig(zap.NewNop())
	require.Error(t, err)
	for _, want := range []string{"server port", "max sessions", `unsupported exercise "squat"`, "elbow down threshold", "MQTT QoS"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadThresholds(t *testing.T) {
	path := writeFile(t, "thresholds.yaml", "elbow_down_threshold: 85\nbody_aligned_threshold: 150\n")

	got, err := LoadThresholds(path, pushup.DefaultThresholds())
	require.NoError(t, err)

	want := pushup.DefaultThresholds()
	want.ElbowDown = 85
	want.BodyAligned = 150
	assert.Equal(t, want, got)
}

func TestLoadThresholdsErrors(t *testing.T) {
	base := pushup.DefaultThresholds()

	_, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml"), base)
	assert.ErrorContains(t, err, "failed to stat")

	_, err = LoadThresholds(writeFile(t, "bad.yaml", "elbow_up_threshold: [1, 2"), base)
	assert.ErrorContains(t, err, "failed to parse")

	got, err := LoadThresholds(writeFile(t, "inverted.yaml", "elbow_down_threshold: 170\n"), base)
	assert.ErrorContains(t, err, "invalid thresholds file")
	assert.Equal(t, base, got)
}

func TestApplyThresholdsFile(t *testing.T) {
	cfg := LoadConfig()
	require.NoError(t, cfg.ApplyThresholdsFile())
	assert.Equal(t, pushup.DefaultThresholds(), cfg.Exercise.Thresholds)

	cfg.Exercise.ThresholdsFile = writeFile(t, "t.yaml", "confidence_threshold: 0.5\n")
	require.NoError(t, cfg.ApplyThresholdsFile())
	assert.Equal(t, 0.5, cfg.Exercise.Thresholds.ConfidenceThreshold)
}

func TestNewLogger(t *testing.T) {
	logger, err := LoggingConfig{Level: "debug", Format: "console"}.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = LoggingConfig{Level: "warn", Format: "json"}.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = LoggingConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
