package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/pushup-cv/server/emitter"
	"github.com/san-kum/pushup-cv/server/models"
	"github.com/san-kum/pushup-cv/server/processor"
	"github.com/san-kum/pushup-cv/server/session"
	"go.uber.org/zap"
)

// EventStats reports event publishing counters.
type EventStats interface {
	Stats() emitter.Stats
}

type StreamHandler struct {
	processor *processor.FrameProcessor
	events    EventStats
	logger    *zap.Logger

	mu    sync.Mutex
	stats *SystemStats
}

type SystemStats struct {
	TotalRequests  int64     `json:"total_requests"`
	ProcessedOK    int64     `json:"processed_ok"`
	ProcessedError int64     `json:"processed_error"`
	AvgProcessTime float64   `json:"avg_process_time_ms"`
	LastUpdated    time.Time `json:"last_updated"`
}

type CreateSessionRequest struct {
	ClientID string `json:"client_id"`
}

type FrameUploadRequest struct {
	Poses     []models.Pose `json:"poses"`
	Timestamp int64         `json:"timestamp"`
}

type ImageUploadRequest struct {
	ImageData string `json:"image_data" binding:"required"`
	Timestamp int64  `json:"timestamp"`
}

func NewStreamHandler(processor *processor.FrameProcessor, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		processor: processor,
		logger:    logger,
		stats: &SystemStats{
			LastUpdated: time.Now(),
		},
	}
}

// SetEventStats adds event publishing counters to the stats endpoint.
func (h *StreamHandler) SetEventStats(events EventStats) {
	h.events = events
}

func (h *StreamHandler) CreateSession(c *gin.Context) {
	var request CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}
	if request.ClientID == "" {
		request.ClientID = c.ClientIP()
	}

	sess := h.processor.CreateSession(request.ClientID)
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"status":     sess.Status(),
	})
}

func (h *StreamHandler) GetSession(c *gin.Context) {
	sess, err := h.processor.GetSession(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

func (h *StreamHandler) ProcessFrame(c *gin.Context) {
	startTime := time.Now()

	var request FrameUploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Error("Invalid request format", zap.Error(err))
		h.record(false, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.processor.ProcessFrame(&models.FrameRequest{
		Poses:     request.Poses,
		Timestamp: request.Timestamp,
		SessionID: c.Param("id"),
	})
	if err != nil {
		h.record(false, 0)
		h.respondError(c, err)
		return
	}

	h.record(true, time.Since(startTime))
	c.JSON(http.StatusOK, result)
}

func (h *StreamHandler) ProcessImage(c *gin.Context) {
	startTime := time.Now()

	var request ImageUploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Error("Invalid request format", zap.Error(err))
		h.record(false, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	imageData, err := extractImageData(request.ImageData)
	if err != nil {
		h.logger.Error("Failed to process image data", zap.Error(err))
		h.record(false, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data"})
		return
	}

	result, err := h.processor.ProcessImage(c.Request.Context(), &models.ImageRequest{
		ImageData: imageData,
		Timestamp: request.Timestamp,
		SessionID: c.Param("id"),
	})
	if err != nil {
		h.record(false, 0)
		h.respondError(c, err)
		return
	}

	h.record(true, time.Since(startTime))
	c.JSON(http.StatusOK, result)
}

func (h *StreamHandler) ResetSession(c *gin.Context) {
	status, err := h.processor.ResetSession(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"status":     status,
	})
}

func (h *StreamHandler) EndSession(c *gin.Context) {
	if err := h.processor.EndSession(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StreamHandler) GetStats(c *gin.Context) {
	h.mu.Lock()
	h.stats.LastUpdated = time.Now()
	system := *h.stats
	h.mu.Unlock()

	var successRate, errorRate float64
	if system.TotalRequests > 0 {
		successRate = float64(system.ProcessedOK) / float64(system.TotalRequests) * 100
		errorRate = float64(system.ProcessedError) / float64(system.TotalRequests) * 100
	}

	processorStats := h.processor.GetStats()

	response := gin.H{
		"system":    system,
		"processor": processorStats,
		"sessions":  h.processor.SessionStats(),
		"metrics": gin.H{
			"success_rate":   successRate,
			"error_rate":     errorRate,
			"uptime_seconds": time.Since(processorStats.StartTime).Seconds(),
		},
	}
	if h.events != nil {
		response["events"] = h.events.Stats()
	}

	c.JSON(http.StatusOK, response)
}

func (h *StreamHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, processor.ErrMissingSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session id is required"})
	case errors.Is(err, processor.ErrEstimatorDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Pose estimator is not configured"})
	default:
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
	}
}

func (h *StreamHandler) record(ok bool, duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalRequests++
	if !ok {
		h.stats.ProcessedError++
		return
	}
	h.stats.ProcessedOK++

	currentTime := float64(duration.Microseconds()) / 1000
	if h.stats.AvgProcessTime == 0 {
		h.stats.AvgProcessTime = currentTime
	} else {
		alpha := 0.1
		h.stats.AvgProcessTime = alpha*currentTime + (1-alpha)*h.stats.AvgProcessTime
	}
}

// extractImageData decodes the base64 payload of a data URL.
func extractImageData(dataURL string) ([]byte, error) {
	_, encoded, found := strings.Cut(dataURL, ",")
	if !found || encoded == "" || strings.Contains(encoded, ",") {
		return nil, fmt.Errorf("invalid data URL format")
	}

	imageData, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return imageData, nil
}
