package catalog

import (
	"time"

	"reelsub/internal/subtitles"
)

// Status is the project lifecycle state. Transitions are enforced by the
// status package; the catalog only persists them.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Project is a user's uploaded video and its processing state.
type Project struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Status        Status    `json:"status"`
	MediaPath     string    `json:"media_path"`
	MediaFilename string    `json:"media_filename"`
	ExportRef     string    `json:"export_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProject describes a project to create.
type NewProject struct {
	ID            string
	Owner         string
	MediaPath     string
	MediaFilename string
}

// Subtitle is the live caption record of a project.
type Subtitle struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Language    string    `json:"language"`
	SRTText     string    `json:"srt_text"`
	JSONPayload string    `json:"json_payload"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document decodes the structured form.
func (s *Subtitle) Document() (subtitles.Document, error) {
	return subtitles.UnmarshalDocument([]byte(s.JSONPayload))
}
