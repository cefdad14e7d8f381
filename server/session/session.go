// Package session keeps one exercise counter per connected client.
package session

import (
	"sync"
	"time"

	"github.com/san-kum/pushup-cv/server/models"
)

// Counter is implemented by every exercise detector. Implementations do not
// need to be safe for concurrent use; Session serializes access.
type Counter interface {
	Exercise() string
	Process(poses []models.Pose) (models.ExerciseStatus, error)
	Reset() models.ExerciseStatus
	Status() models.ExerciseStatus
}

type Session struct {
	ID        string
	ClientID  string
	StartTime time.Time

	mu        sync.Mutex
	counter   Counter
	lastSeen  time.Time
	frames    int64
	resets    int
	detecting bool
}

func New(id, clientID string, counter Counter) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		ClientID:  clientID,
		StartTime: now,
		counter:   counter,
		lastSeen:  now,
		detecting: true,
	}
}

// Process runs one frame through the counter. repCompleted is true when the
// frame finished a repetition.
func (s *Session) Process(poses []models.Pose) (status models.ExerciseStatus, repCompleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.counter.Status().RepCount
	status, err = s.counter.Process(poses)

	s.frames++
	s.lastSeen = time.Now()
	s.detecting = true

	return status, status.RepCount > before, err
}

func (s *Session) Reset() models.ExerciseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resets++
	s.lastSeen = time.Now()
	return s.counter.Reset()
}

// Stop resets the counter and marks the session idle until the next frame.
func (s *Session) Stop() models.ExerciseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resets++
	s.detecting = false
	s.lastSeen = time.Now()
	return s.counter.Reset()
}

func (s *Session) Status() models.ExerciseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.Status()
}

func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.SessionInfo{
		ID:        s.ID,
		ClientID:  s.ClientID,
		Exercise:  s.counter.Exercise(),
		StartTime: s.StartTime,
		LastSeen:  s.lastSeen,
		Frames:    s.frames,
		Status:    s.counter.Status(),
		Detecting: s.detecting,
		Resets:    s.resets,
	}
}
