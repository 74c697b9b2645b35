package subtitles

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSegments reports a segment list that breaks the timing invariants.
var ErrInvalidSegments = errors.New("invalid segments")

// Word is a word-level timing owned by exactly one Segment.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability,omitempty"`
}

// Segment is one caption unit. Index is zero-based within its subtitle.
type Segment struct {
	Index int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Duration returns End-Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Validate checks that every segment has 0 <= start < end and that starts are
// non-decreasing.
func Validate(segments []Segment) error {
	prevStart := 0.0
	for i, seg := range segments {
		if math.IsNaN(seg.Start) || math.IsNaN(seg.End) || math.IsInf(seg.Start, 0) || math.IsInf(seg.End, 0) {
			return fmt.Errorf("%w: segment %d has non-finite timing", ErrInvalidSegments, i)
		}
		if seg.Start < 0 || seg.End < 0 {
			return fmt.Errorf("%w: segment %d has negative timing", ErrInvalidSegments, i)
		}
		if seg.Start >= seg.End {
			return fmt.Errorf("%w: segment %d starts at %.3f but ends at %.3f", ErrInvalidSegments, i, seg.Start, seg.End)
		}
		if i > 0 && seg.Start < prevStart {
			return fmt.Errorf("%w: segment %d starts before segment %d", ErrInvalidSegments, i, i-1)
		}
		prevStart = seg.Start
	}
	return nil
}

// Reindex assigns zero-based sequential indexes in place and returns the slice.
func Reindex(segments []Segment) []Segment {
	for i := range segments {
		segments[i].Index = i
	}
	return segments
}

// Clone deep-copies segments, including word timings.
func Clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		if seg.Words != nil {
			out[i].Words = append([]Word(nil), seg.Words...)
		}
	}
	return out
}

// ApplyTextEdits replaces segment text by index. Timings and word lists are
// left untouched except that words are dropped for an edited segment, since
// they no longer describe its text.
func ApplyTextEdits(segments []Segment, edits map[int]string) ([]Segment, error) {
	out := Clone(segments)
	for idx, text := range edits {
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("%w: edit targets segment %d of %d", ErrInvalidSegments, idx, len(out))
		}
		if out[idx].Text == text {
			continue
		}
		out[idx].Text = text
		out[idx].Words = nil
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}
