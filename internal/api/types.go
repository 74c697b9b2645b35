package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	ProjectID       string          `json:"projectId"`
	MediaPath       string          `json:"mediaPath"`
	State           string          `json:"state"`
	Attempt         int             `json:"attempt"`
	MaxAttempts     int             `json:"maxAttempts"`
	StorageFailures int             `json:"storageFailures,omitempty"`
	NotBefore       string          `json:"notBefore,omitempty"`
	LastDelaySecs   float64         `json:"lastDelaySeconds,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	ErrorKind       string          `json:"errorKind,omitempty"`
	Options         json.RawMessage `json:"options,omitempty"`
	Result          *JobResult      `json:"result,omitempty"`
	LastHeartbeat   string          `json:"lastHeartbeat,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
}

// JobResult mirrors the outcome recorded on a finished job.
type JobResult struct {
	ProjectID     string  `json:"projectId"`
	Status        string  `json:"status"`
	ArtifactRef   string  `json:"artifactRef,omitempty"`
	ArtifactURL   string  `json:"artifactUrl,omitempty"`
	Error         string  `json:"error,omitempty"`
	SegmentsCount int     `json:"segmentsCount,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
}

// Project describes a catalog project.
type Project struct {
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	Status        string `json:"status"`
	MediaPath     string `json:"mediaPath,omitempty"`
	MediaFilename string `json:"mediaFilename,omitempty"`
	ExportRef     string `json:"exportRef,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	BusyWorkers int            `json:"busyWorkers"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Items []Job `json:"items"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Item Job `json:"item"`
}

// ProjectListResponse wraps a collection of projects.
type ProjectListResponse struct {
	Items []Project `json:"items"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Item Project `json:"item"`
}

// TranscribeRequest is the optional body of transcribe and regenerate calls.
type TranscribeRequest struct {
	Language string `json:"language"`
}

// SegmentEdit replaces the text of one segment.
type SegmentEdit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// SubtitleEditRequest is the body of PUT /api/projects/{id}/subtitles.
type SubtitleEditRequest struct {
	Edits []SegmentEdit `json:"edits"`
}

// LogEvent is a structured log line served by /api/logs.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     string            `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	JobID         string            `json:"jobId,omitempty"`
	ProjectID     string            `json:"projectId,omitempty"`
	JobKind       string            `json:"jobKind,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse wraps a batch of log events and the next cursor.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
