package processor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/pushup-cv/server/models"
	"github.com/san-kum/pushup-cv/server/pushup"
	"github.com/san-kum/pushup-cv/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEstimator struct {
	poses []models.Pose
	err   error
	calls int
}

func (f *fakeEstimator) EstimatePoses(_ context.Context, _ *models.ImageRequest) ([]models.Pose, error) {
	f.calls++
	return f.poses, f.err
}

type recordingPublisher struct {
	events chan models.Event
	err    error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan models.Event, 16)}
}

func (p *recordingPublisher) Publish(event models.Event) error {
	p.events <- event
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) next(t *testing.T) models.Event {
	t.Helper()
	select {
	case event := <-p.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

// armPose builds a left-side pose with a straight body and the given elbow
// angle in degrees.
func armPose(elbowDeg float64) []models.Pose {
	rad := elbowDeg * math.Pi / 180
	joint := func(name string, x, y float64) models.Joint {
		return models.Joint{Name: name, X: x, Y: y, Score: models.Score(0.9)}
	}
	return []models.Pose{{Keypoints: []models.Joint{
		joint(models.LeftShoulder, 100, 100),
		joint(models.LeftElbow, 100, 150),
		joint(models.LeftWrist, 100+50*math.Sin(rad), 150-50*math.Cos(rad)),
		joint(models.LeftHip, 200, 100),
		joint(models.LeftKnee, 300, 100),
		joint(models.LeftAnkle, 400, 100),
	}}}
}

func newTestProcessor(t *testing.T, opts Options) *FrameProcessor {
	t.Helper()
	logger := zap.NewNop()
	store := session.NewStore(10, time.Hour, logger)
	factory, err := NewCounterFactory(pushup.ExerciseName, pushup.DefaultThresholds())
	require.NoError(t, err)

	fp := NewFrameProcessor(store, factory, opts, logger)
	t.Cleanup(func() { _ = store.Close() })
	return fp
}

func TestNewCounterFactory(t *testing.T) {
	factory, err := NewCounterFactory("pushup", pushup.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, "pushup", factory().Exercise())

	_, err = NewCounterFactory("squat", pushup.DefaultThresholds())
	assert.ErrorContains(t, err, "unsupported exercise")

	bad := pushup.DefaultThresholds()
	bad.ElbowDown = 170
	_, err = NewCounterFactory("pushup", bad)
	assert.Error(t, err)
}

func TestProcessFrameCountsRep(t *testing.T) {
	pub := newRecordingPublisher()
	fp := newTestProcessor(t, Options{Publisher: pub})
	sess := fp.CreateSession("client-1")
	require.NotEmpty(t, sess.ID)

	var last *models.FrameResult
	for _, angle := range []float64{170, 120, 80, 120, 170} {
		result, err := fp.ProcessFrame(&models.FrameRequest{SessionID: sess.ID, Poses: armPose(angle), Timestamp: 42})
		require.NoError(t, err)
		last = result
	}

	assert.True(t, last.RepCompleted)
	assert.Equal(t, 1, last.Status.RepCount)
	assert.Equal(t, models.PhaseUp, last.Status.CurrentPhase)
	assert.Equal(t, int64(42), last.Timestamp)
	assert.NotEmpty(t, last.Overlay)

	event := pub.next(t)
	assert.Equal(t, models.EventRep, event.Type)
	assert.Equal(t, sess.ID, event.SessionID)
	assert.Equal(t, 1, event.Status.RepCount)

	stats := fp.GetStats()
	assert.Equal(t, int64(5), stats.TotalFrames)
	assert.Equal(t, int64(1), stats.RepsCounted)
	assert.Equal(t, int64(1), stats.SessionsCreated)
	assert.Equal(t, 1, stats.ActiveSessions)
}

func TestProcessFrameUnknownSession(t *testing.T) {
	fp := newTestProcessor(t, Options{})

	_, err := fp.ProcessFrame(&models.FrameRequest{SessionID: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = fp.ProcessFrame(&models.FrameRequest{})
	assert.ErrorIs(t, err, ErrMissingSession)
}

func TestSessionsAreIndependent(t *testing.T) {
	fp := newTestProcessor(t, Options{})
	a := fp.CreateSession("a")
	b := fp.CreateSession("b")

	for _, angle := range []float64{170, 80, 120, 170} {
		_, err := fp.ProcessFrame(&models.FrameRequest{SessionID: a.ID, Poses: armPose(angle)})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, a.Status().RepCount)
	assert.Equal(t, 0, b.Status().RepCount)
}

func TestResetAndStopSession(t *testing.T) {
	pub := newRecordingPublisher()
	fp := newTestProcessor(t, Options{Publisher: pub})
	sess := fp.CreateSession("client")

	for _, angle := range []float64{170, 80, 120, 170} {
		_, err := fp.ProcessFrame(&models.FrameRequest{SessionID: sess.ID, Poses: armPose(angle)})
		require.NoError(t, err)
	}
	assert.Equal(t, models.EventRep, pub.next(t).Type)

	status, err := fp.ResetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.RepCount)
	assert.Equal(t, pushup.FeedbackReset, status.Feedback)
	assert.Equal(t, models.EventReset, pub.next(t).Type)

	status, err = fp.StopSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseUnknown, status.CurrentPhase)
	assert.False(t, sess.Info().Detecting)
	assert.Equal(t, models.EventReset, pub.next(t).Type)

	assert.Equal(t, int64(2), fp.GetStats().Resets)

	_, err = fp.ResetSession("missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestEndSession(t *testing.T) {
	fp := newTestProcessor(t, Options{})
	sess := fp.CreateSession("client")

	require.NoError(t, fp.EndSession(sess.ID))
	_, err := fp.GetSession(sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, fp.EndSession(sess.ID), session.ErrNotFound)
}

func TestProcessImage(t *testing.T) {
	t.Run("estimator disabled", func(t *testing.T) {
		fp := newTestProcessor(t, Options{})
		sess := fp.CreateSession("client")
		_, err := fp.ProcessImage(context.Background(), &models.ImageRequest{SessionID: sess.ID})
		assert.ErrorIs(t, err, ErrEstimatorDisabled)
	})

	t.Run("estimated poses are processed", func(t *testing.T) {
		est := &fakeEstimator{poses: armPose(170)}
		fp := newTestProcessor(t, Options{Estimator: est})
		sess := fp.CreateSession("client")

		result, err := fp.ProcessImage(context.Background(), &models.ImageRequest{SessionID: sess.ID, ImageData: []byte{1}})
		require.NoError(t, err)
		assert.Equal(t, models.PhaseUp, result.Status.CurrentPhase)
		assert.Equal(t, 1, est.calls)
		assert.Equal(t, int64(1), fp.GetStats().ImageFrames)
	})

	t.Run("estimator failure", func(t *testing.T) {
		est := &fakeEstimator{err: errors.New("boom")}
		fp := newTestProcessor(t, Options{Estimator: est})
		sess := fp.CreateSession("client")

		_, err := fp.ProcessImage(context.Background(), &models.ImageRequest{SessionID: sess.ID})
		assert.ErrorContains(t, err, "boom")
		assert.Equal(t, int64(1), fp.GetStats().EstimatorFailures)
		assert.Equal(t, int64(0), fp.GetStats().TotalFrames)
	})
}

func TestPublishFailureDoesNotFailFrame(t *testing.T) {
	pub := newRecordingPublisher()
	pub.err = errors.New("broker down")
	fp := newTestProcessor(t, Options{Publisher: pub})
	sess := fp.CreateSession("client")

	status, err := fp.ResetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.RepCount)
	pub.next(t)
}

func TestShutdown(t *testing.T) {
	pub := newRecordingPublisher()
	fp := newTestProcessor(t, Options{Publisher: pub})
	sess := fp.CreateSession("client")
	_, err := fp.ResetSession(sess.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, fp.Shutdown(ctx))
}

func TestEventsAfterShutdownAreDropped(t *testing.T) {
	pub := newRecordingPublisher()
	fp := newTestProcessor(t, Options{Publisher: pub})
	sess := fp.CreateSession("client")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, fp.Shutdown(ctx))

	_, err := fp.ResetSession(sess.ID)
	require.NoError(t, err)

	select {
	case event := <-pub.events:
		t.Fatalf("unexpected event after shutdown: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
