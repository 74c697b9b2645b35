package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind names the work a job performs.
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindExport     Kind = "export"
)

// ParseKind validates a user-supplied job kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindTranscribe:
		return KindTranscribe, nil
	case KindExport:
		return KindExport, nil
	default:
		return "", fmt.Errorf("unknown job kind %q", value)
	}
}

// State is the queue-level lifecycle of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Active reports whether the job still occupies its project's slot.
func (s State) Active() bool {
	return s == StateQueued || s == StateRunning
}

// Job is a persisted unit of work.
type Job struct {
	ID              string
	Kind            Kind
	ProjectID       string
	MediaPath       string
	Options         json.RawMessage
	State           State
	Attempt         int
	MaxAttempts     int
	StorageFailures int
	NotBefore       time.Time
	LastDelay       time.Duration
	Result          *Result
	ErrorMessage    string
	ErrorKind       string
	LastHeartbeat   *time.Time
	ClaimToken      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message is the wire form of a job handed to a worker.
type Message struct {
	Kind      Kind            `json:"kind"`
	ProjectID string          `json:"project_id"`
	MediaPath string          `json:"media_path"`
	Attempt   int             `json:"attempt"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Message returns the wire form of the job.
func (j *Job) Message() Message {
	return Message{
		Kind:      j.Kind,
		ProjectID: j.ProjectID,
		MediaPath: j.MediaPath,
		Attempt:   j.Attempt,
		Options:   j.Options,
	}
}

// Result is the outcome recorded when a job finishes.
type Result struct {
	ProjectID     string  `json:"project_id"`
	Status        string  `json:"status"`
	ArtifactRef   string  `json:"artifact_ref,omitempty"`
	ArtifactURL   string  `json:"artifact_url,omitempty"`
	Error         string  `json:"error,omitempty"`
	SegmentsCount int     `json:"segments_count,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
}

// EnqueueRequest describes a job to persist.
type EnqueueRequest struct {
	Kind        Kind
	ProjectID   string
	MediaPath   string
	Options     json.RawMessage
	MaxAttempts int
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	States    []State
	ProjectID string
	Limit     int
}

// Stats counts jobs by state.
type Stats map[State]int

// Total returns the number of jobs across all states.
func (s Stats) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}
