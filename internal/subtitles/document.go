package subtitles

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects a subtitle download representation.
type Format string

const (
	FormatSRT  Format = "srt"
	FormatJSON Format = "json"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatSRT, "":
		return FormatSRT, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", value)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/plain"
}

// Filename returns the download filename for a project.
func (f Format) Filename(projectID string) string {
	return fmt.Sprintf("subtitles_%s.%s", projectID, f)
}

// Document is the structured form of a subtitle kept alongside the SRT text.
type Document struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Duration float64   `json:"duration"`
}

// NewDocument builds a document, deriving the full text from the segments when
// text is blank.
func NewDocument(text, language string, segments []Segment, duration float64) Document {
	segs := Reindex(Clone(segments))
	if segs == nil {
		segs = []Segment{}
	}
	if strings.TrimSpace(text) == "" {
		text = JoinText(segs)
	}
	return Document{Text: text, Language: language, Segments: segs, Duration: duration}
}

// JoinText concatenates trimmed segment texts with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Marshal encodes the document as indented JSON.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode subtitle document: %w", err)
	}
	return data, nil
}

// UnmarshalDocument decodes a stored JSON payload.
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode subtitle document: %w", err)
	}
	return doc, nil
}
