package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/pushup-cv/server/emitter"
	"github.com/san-kum/pushup-cv/server/models"
	"github.com/san-kum/pushup-cv/server/pushup"
	"github.com/san-kum/pushup-cv/server/session"
	"go.uber.org/zap"
)

var (
	ErrEstimatorDisabled = errors.New("pose estimator is not configured")
	ErrMissingSession    = errors.New("session id is required")
)

// PoseEstimator turns a camera image into poses.
type PoseEstimator interface {
	EstimatePoses(ctx context.Context, request *models.ImageRequest) ([]models.Pose, error)
}

// CounterFactory builds a fresh counter for every new session.
type CounterFactory func() session.Counter

// NewCounterFactory returns the factory registered for exercise.
func NewCounterFactory(exercise string, thresholds pushup.Thresholds) (CounterFactory, error) {
	switch exercise {
	case pushup.ExerciseName:
		if err := thresholds.Validate(); err != nil {
			return nil, err
		}
		return func() session.Counter { return pushup.NewDetector(thresholds) }, nil
	default:
		return nil, fmt.Errorf("unsupported exercise %q", exercise)
	}
}

type FrameProcessor struct {
	sessions   *session.Store
	newCounter CounterFactory
	estimator  PoseEstimator
	publisher  emitter.Publisher
	logger     *zap.Logger

	mutex   sync.RWMutex
	stats   *ProcessorStats
	closing bool

	wg sync.WaitGroup
}

type ProcessorStats struct {
	StartTime           time.Time `json:"start_time"`
	TotalFrames         int64     `json:"total_frames"`
	ImageFrames         int64     `json:"image_frames"`
	RepsCounted         int64     `json:"reps_counted"`
	Resets              int64     `json:"resets"`
	EstimatorFailures   int64     `json:"estimator_failures"`
	InvariantViolations int64     `json:"invariant_violations"`
	AverageLatency      float64   `json:"average_latency_ms"`
	SessionsCreated     int64     `json:"sessions_created"`
	ActiveSessions      int       `json:"active_sessions"`
}

// Options carries the optional collaborators of a FrameProcessor. Nil
// fields disable the matching feature.
type Options struct {
	Estimator PoseEstimator
	Publisher emitter.Publisher
}

func NewFrameProcessor(sessions *session.Store, newCounter CounterFactory, opts Options, logger *zap.Logger) *FrameProcessor {
	return &FrameProcessor{
		sessions:   sessions,
		newCounter: newCounter,
		estimator:  opts.Estimator,
		publisher:  opts.Publisher,
		logger:     logger,
		stats: &ProcessorStats{
			StartTime: time.Now(),
		},
	}
}

func (fp *FrameProcessor) CreateSession(clientID string) *session.Session {
	sess := session.New(uuid.NewString(), clientID, fp.newCounter())
	fp.sessions.Put(sess)

	fp.mutex.Lock()
	fp.stats.SessionsCreated++
	fp.mutex.Unlock()

	fp.logger.Info("Session created",
		zap.String("session_id", sess.ID),
		zap.String("client_id", clientID))
	return sess
}

func (fp *FrameProcessor) GetSession(id string) (*session.Session, error) {
	if id == "" {
		return nil, ErrMissingSession
	}
	return fp.sessions.Get(id)
}

func (fp *FrameProcessor) EndSession(id string) error {
	if !fp.sessions.Delete(id) {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	fp.logger.Info("Session ended", zap.String("session_id", id))
	return nil
}

// ProcessFrame feeds one frame of poses to the request's session.
func (fp *FrameProcessor) ProcessFrame(request *models.FrameRequest) (*models.FrameResult, error) {
	sess, err := fp.GetSession(request.SessionID)
	if err != nil {
		return nil, err
	}
	return fp.process(sess, request.Poses, request.Timestamp), nil
}

// ProcessImage asks the pose estimator for poses and then processes them
// like any other frame.
func (fp *FrameProcessor) ProcessImage(ctx context.Context, request *models.ImageRequest) (*models.FrameResult, error) {
	if fp.estimator == nil {
		return nil, ErrEstimatorDisabled
	}

	sess, err := fp.GetSession(request.SessionID)
	if err != nil {
		return nil, err
	}

	poses, err := fp.estimator.EstimatePoses(ctx, request)
	if err != nil {
		fp.mutex.Lock()
		fp.stats.EstimatorFailures++
		fp.mutex.Unlock()
		return nil, fmt.Errorf("failed to estimate poses: %w", err)
	}

	fp.mutex.Lock()
	fp.stats.ImageFrames++
	fp.mutex.Unlock()

	return fp.process(sess, poses, request.Timestamp), nil
}

func (fp *FrameProcessor) process(sess *session.Session, poses []models.Pose, timestamp int64) *models.FrameResult {
	startTime := time.Now()

	status, repCompleted, err := sess.Process(poses)
	if err != nil {
		fp.logger.Error("Exercise counter rejected frame",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}

	latency := time.Since(startTime)

	fp.mutex.Lock()
	fp.stats.TotalFrames++
	if err != nil && errors.Is(err, pushup.ErrInvariantViolation) {
		fp.stats.InvariantViolations++
	}
	if repCompleted {
		fp.stats.RepsCounted++
	}
	fp.updateLatencyStats(latency)
	fp.mutex.Unlock()

	if repCompleted {
		fp.logger.Debug("Rep counted",
			zap.String("session_id", sess.ID),
			zap.Int("rep_count", status.RepCount))
		fp.publish(models.EventRep, sess.ID, status)
	}

	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	return &models.FrameResult{
		SessionID:      sess.ID,
		Status:         status,
		Overlay:        BuildOverlay(poses),
		RepCompleted:   repCompleted,
		ProcessingTime: float64(latency.Microseconds()) / 1000,
		Timestamp:      timestamp,
	}
}

func (fp *FrameProcessor) ResetSession(id string) (models.ExerciseStatus, error) {
	sess, err := fp.GetSession(id)
	if err != nil {
		return models.ExerciseStatus{}, err
	}

	status := sess.Reset()
	fp.recordReset(sess.ID, status)
	return status, nil
}

// StopSession resets the counter the way stopping detection does on the
// client, and marks the session idle.
func (fp *FrameProcessor) StopSession(id string) (models.ExerciseStatus, error) {
	sess, err := fp.GetSession(id)
	if err != nil {
		return models.ExerciseStatus{}, err
	}

	status := sess.Stop()
	fp.recordReset(sess.ID, status)
	return status, nil
}

func (fp *FrameProcessor) recordReset(id string, status models.ExerciseStatus) {
	fp.mutex.Lock()
	fp.stats.Resets++
	fp.mutex.Unlock()

	fp.logger.Info("Session counter reset", zap.String("session_id", id))
	fp.publish(models.EventReset, id, status)
}

func (fp *FrameProcessor) publish(eventType, sessionID string, status models.ExerciseStatus) {
	if fp.publisher == nil {
		return
	}

	event := models.Event{
		Type:      eventType,
		SessionID: sessionID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}

	fp.mutex.Lock()
	if fp.closing {
		fp.mutex.Unlock()
		fp.logger.Debug("Dropping event during shutdown",
			zap.String("type", eventType),
			zap.String("session_id", sessionID))
		return
	}
	fp.wg.Add(1)
	fp.mutex.Unlock()

	go func() {
		defer fp.wg.Done()
		if err := fp.publisher.Publish(event); err != nil {
			fp.logger.Warn("Failed to publish event",
				zap.String("type", eventType),
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}()
}

func (fp *FrameProcessor) GetStats() ProcessorStats {
	fp.mutex.RLock()
	defer fp.mutex.RUnlock()

	stats := *fp.stats
	stats.ActiveSessions = fp.sessions.Len()
	return stats
}

func (fp *FrameProcessor) SessionStats() session.StoreStats {
	return fp.sessions.Stats()
}

func (fp *FrameProcessor) updateLatencyStats(latency time.Duration) {
	currentLatency := float64(latency.Microseconds()) / 1000

	if fp.stats.AverageLatency == 0 {
		fp.stats.AverageLatency = currentLatency
	} else {
		alpha := 0.1
		fp.stats.AverageLatency = alpha*currentLatency + (1-alpha)*fp.stats.AverageLatency
	}
}

// Shutdown waits for in-flight event publishes and closes the session store.
func (fp *FrameProcessor) Shutdown(ctx context.Context) error {
	fp.logger.Info("Shutting down frame processor...")

	fp.mutex.Lock()
	fp.closing = true
	fp.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		fp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("frame processor shutdown: %w", ctx.Err())
	}

	if err := fp.sessions.Close(); err != nil {
		fp.logger.Error("Failed to close session store", zap.Error(err))
		return err
	}

	fp.logger.Info("Frame processor shutdown complete")
	return nil
}
