package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/pushup-cv/server/pushup"
	"go.uber.org/zap"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Estimator EstimatorConfig `json:"estimator"`
	Security  SecurityConfig  `json:"security"`
	Session   SessionConfig   `json:"session"`
	Exercise  ExerciseConfig  `json:"exercise"`
	MQTT      MQTTConfig      `json:"mqtt"`
	Logging   LoggingConfig   `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

// EstimatorConfig points at the external pose estimation service used for
// image frames. An empty BaseURL disables image uploads.
type EstimatorConfig struct {
	BaseURL             string        `json:"base_url"`
	Timeout             time.Duration `json:"timeout"`
	MaxRetries          int           `json:"max_retries"`
	RetryDelay          time.Duration `json:"retry_delay"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

type SecurityConfig struct {
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimitRPS   int           `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHTTPS    bool          `json:"enable_https"`
	CertFile       string        `json:"cert_file"`
	KeyFile        string        `json:"key_file"`
}

type SessionConfig struct {
	MaxSessions int           `json:"max_sessions"`
	TTL         time.Duration `json:"ttl"`
}

type ExerciseConfig struct {
	Name           string            `json:"name"`
	ThresholdsFile string            `json:"thresholds_file"`
	Thresholds     pushup.Thresholds `json:"thresholds"`
}

// MQTTConfig enables event publishing when Broker is set.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         int    `json:"qos"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Estimator: EstimatorConfig{
			BaseURL:             getEnv("ESTIMATOR_BASE_URL", ""),
			Timeout:             getEnvAsDuration("ESTIMATOR_TIMEOUT", 5*time.Second),
			MaxRetries:          getEnvAsInt("ESTIMATOR_MAX_RETRIES", 2),
			RetryDelay:          getEnvAsDuration("ESTIMATOR_RETRY_DELAY", 200*time.Millisecond),
			HealthCheckInterval: getEnvAsDuration("ESTIMATOR_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Security: SecurityConfig{
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024), // 10MB
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			EnableHTTPS:    getEnvAsBool("ENABLE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
		},
		Session: SessionConfig{
			MaxSessions: getEnvAsInt("SESSION_MAX", 1000),
			TTL:         getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		Exercise: ExerciseConfig{
			Name:           getEnv("EXERCISE", pushup.ExerciseName),
			ThresholdsFile: getEnv("THRESHOLDS_FILE", ""),
			Thresholds: pushup.Thresholds{
				ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", pushup.DefaultConfidenceThreshold),
				ElbowDown:           getEnvAsFloat("ELBOW_DOWN_THRESHOLD", pushup.DefaultElbowDown),
				ElbowUp:             getEnvAsFloat("ELBOW_UP_THRESHOLD", pushup.DefaultElbowUp),
				BodyAligned:         getEnvAsFloat("BODY_ALIGNED_THRESHOLD", pushup.DefaultBodyAligned),
			},
		},
		MQTT: MQTTConfig{
			Broker:      getEnv("MQTT_BROKER", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "pushup-cv"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "pushup"),
			QoS:         getEnvAsInt("MQTT_QOS", 1),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config
}

// ApplyThresholdsFile overlays the thresholds file, if one is configured, on
// top of the env-derived thresholds.
func (c *Config) ApplyThresholdsFile() error {
	if c.Exercise.ThresholdsFile == "" {
		return nil
	}

	thresholds, err := LoadThresholds(c.Exercise.ThresholdsFile, c.Exercise.Thresholds)
	if err != nil {
		return err
	}
	c.Exercise.Thresholds = thresholds
	return nil
}

func (c *Config) ValidateConfig(logger *zap.Logger) error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}

	if c.Estimator.BaseURL == "" {
		logger.Warn("Pose estimator URL not set, image frames are disabled")
	}

	if c.Estimator.MaxRetries < 0 {
		errors = append(errors, "estimator max retries must not be negative")
	}

	if c.Security.MaxRequestSize <= 0 {
		errors = append(errors, "max request size must be positive")
	}

	if c.Security.EnableHTTPS && (c.Security.CertFile == "" || c.Security.KeyFile == "") {
		errors = append(errors, "cert and key files are required when HTTPS is enabled")
	}

	if c.Session.MaxSessions < 1 {
		errors = append(errors, "max sessions must be positive")
	}

	if c.Session.TTL <= 0 {
		errors = append(errors, "session TTL must be positive")
	}

	if c.Exercise.Name != pushup.ExerciseName {
		errors = append(errors, fmt.Sprintf("unsupported exercise %q", c.Exercise.Name))
	}

	if err := c.Exercise.Thresholds.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.MQTT.Broker != "" && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errors = append(errors, "MQTT QoS must be 0, 1 or 2")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
