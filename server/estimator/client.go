// Package estimator talks to the external pose estimation service that turns
// camera images into keypoints.
package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/san-kum/pushup-cv/server/models"
	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     ClientConfig

	stopCh chan struct{}
	once   sync.Once

	mu      sync.RWMutex
	healthy bool
}

type ClientConfig struct {
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	HealthCheckInterval time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		RetryDelay:          200 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
	}
}

// withDefaults fills unset durations and a negative retry count from
// DefaultClientConfig. A zero HealthCheckInterval keeps health checks off.
func (c ClientConfig) withDefaults() ClientConfig {
	defaults := DefaultClientConfig()
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	return c
}

type EstimateRequest struct {
	ImageData []byte `json:"image_data"`
	Timestamp int64  `json:"timestamp"`
	MaxPoses  int    `json:"max_poses"`
}

type EstimateResponse struct {
	Poses          []models.Pose `json:"poses"`
	ProcessingTime float64       `json:"processing_time"`
	ModelVersion   string        `json:"model_version"`
}

func NewClient(baseURL string, config ClientConfig, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("estimator base URL is required")
	}

	config = config.withDefaults()

	client := &Client{
		baseURL: baseURL,
		logger:  logger,
		config:  config,
		stopCh:  make(chan struct{}),
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		logger.Warn("Pose estimator not available at startup", zap.Error(err))
	}

	if config.HealthCheckInterval > 0 {
		go client.startHealthChecker()
	}

	return client, nil
}

// EstimatePoses sends one image to the estimator, retrying transient
// failures with a linear backoff.
func (c *Client) EstimatePoses(ctx context.Context, request *models.ImageRequest) ([]models.Pose, error) {
	estimateRequest := &EstimateRequest{
		ImageData: request.ImageData,
		Timestamp: request.Timestamp,
		MaxPoses:  1,
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying pose estimation request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))

			select {
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("pose estimation cancelled: %w", ctx.Err())
			}
		}

		response, err := c.executeEstimateRequest(ctx, estimateRequest)
		if err == nil {
			return response.Poses, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("pose estimation failed after %d attempts: %w",
		c.config.MaxRetries+1, lastErr)
}

func (c *Client) executeEstimateRequest(ctx context.Context, request *EstimateRequest) (*EstimateResponse, error) {
	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/estimate", c.baseURL)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "pushup-cv/1.0")

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("estimator error (status %d): %s",
			response.StatusCode, string(bodyBytes))
	}

	var estimateResponse EstimateResponse
	if err := json.NewDecoder(response.Body).Decode(&estimateResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &estimateResponse, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	err := c.healthCheck(ctx)

	c.mu.Lock()
	c.healthy = err == nil
	c.mu.Unlock()

	return err
}

func (c *Client) healthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("pose estimator unhealthy (status %d)", response.StatusCode)
	}

	return nil
}

func (c *Client) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Client) startHealthChecker() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.HealthCheck(context.Background()); err != nil {
				c.logger.Error("Pose estimator health check failed", zap.Error(err))
			} else {
				c.logger.Debug("Pose estimator health check passed")
			}
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the background health checker.
func (c *Client) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
