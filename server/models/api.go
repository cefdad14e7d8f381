package models

import "time"

type FrameRequest struct {
	Poses     []Pose `json:"poses" msgpack:"poses"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"`
	SessionID string `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
}

type ImageRequest struct {
	ImageData []byte `json:"image_data"`
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"session_id"`
}

type FrameResult struct {
	SessionID      string         `json:"session_id"`
	Status         ExerciseStatus `json:"status"`
	Overlay        []Annotation   `json:"overlay"`
	RepCompleted   bool           `json:"rep_completed"`
	ProcessingTime float64        `json:"processing_time_ms"`
	Timestamp      int64          `json:"timestamp"`
}

type Annotation struct {
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Points     []Point `json:"points,omitempty"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Color      string  `json:"color,omitempty"`
}

type SessionInfo struct {
	ID         string         `json:"id"`
	ClientID   string         `json:"client_id"`
	Exercise   string         `json:"exercise"`
	StartTime  time.Time      `json:"start_time"`
	LastSeen   time.Time      `json:"last_seen"`
	Frames     int64          `json:"frames"`
	Status     ExerciseStatus `json:"status"`
	Detecting  bool           `json:"detecting"`
	Resets     int            `json:"resets"`
}

// Event is published to subscribers when a rep is counted or a session is reset.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Status    ExerciseStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

const (
	EventRep   = "rep"
	EventReset = "reset"
)
