package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/san-kum/pushup-cv/server/models"
	"github.com/san-kum/pushup-cv/server/pushup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	status models.ExerciseStatus
	err    error
	calls  int
}

func (c *stubCounter) Exercise() string { return "stub" }

func (c *stubCounter) Process([]models.Pose) (models.ExerciseStatus, error) {
	c.calls++
	c.status.RepCount++
	return c.status, c.err
}

func (c *stubCounter) Reset() models.ExerciseStatus {
	c.status = models.ExerciseStatus{Feedback: "reset"}
	return c.status
}

func (c *stubCounter) Status() models.ExerciseStatus { return c.status }

func TestSessionProcessReportsRep(t *testing.T) {
	t.Parallel()
	counter := &stubCounter{}
	sess := New("id", "client", counter)

	status, rep, err := sess.Process(nil)
	require.NoError(t, err)
	assert.True(t, rep)
	assert.Equal(t, 1, status.RepCount)

	info := sess.Info()
	assert.Equal(t, int64(1), info.Frames)
	assert.Equal(t, "stub", info.Exercise)
	assert.True(t, info.Detecting)
}

func TestSessionPropagatesCounterError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	sess := New("id", "client", &stubCounter{err: boom})

	_, _, err := sess.Process(nil)
	assert.ErrorIs(t, err, boom)
}

func TestSessionStopAndReset(t *testing.T) {
	t.Parallel()
	sess := New("id", "client", pushup.NewDetector(pushup.DefaultThresholds()))

	status := sess.Stop()
	assert.Equal(t, pushup.FeedbackReset, status.Feedback)
	assert.False(t, sess.Info().Detecting)

	_, _, err := sess.Process(nil)
	require.NoError(t, err)
	assert.True(t, sess.Info().Detecting)

	sess.Reset()
	assert.Equal(t, 2, sess.Info().Resets)
}

func TestSessionSerializesFrames(t *testing.T) {
	t.Parallel()
	counter := &stubCounter{}
	sess := New("id", "client", counter)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = sess.Process(nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter.calls)
	assert.Equal(t, 50, sess.Status().RepCount)
}
