package transcription

import (
	"math"
	"sort"
	"strings"

	"reelsub/internal/language"
	"reelsub/internal/subtitles"
)

type verboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []verboseSegment `json:"segments"`
	Words    []subtitles.Word `json:"words"`
}

type verboseSegment struct {
	ID    int              `json:"id"`
	Start float64          `json:"start"`
	End   float64          `json:"end"`
	Text  string           `json:"text"`
	Words []subtitles.Word `json:"words"`
}

// toResult drops unusable segments, orders the rest by start, and hands each
// top-level word to exactly one segment.
func (r verboseResponse) toResult(hint string) Result {
	segments := make([]subtitles.Segment, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if !finite(seg.Start) || !finite(seg.End) || seg.Start < 0 || seg.End <= seg.Start {
			continue
		}
		segments = append(segments, subtitles.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
			Words: seg.Words,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	if !hasWords(segments) {
		attachWords(segments, r.Words)
	}
	subtitles.Reindex(segments)

	lang := language.ToISO2(r.Language)
	if lang == "" && hint != language.Auto {
		lang = hint
	}
	duration := r.Duration
	if !finite(duration) || duration < 0 {
		duration = 0
	}
	if duration == 0 && len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}
	return Result{
		Text:     strings.TrimSpace(r.Text),
		Language: lang,
		Segments: segments,
		Duration: duration,
	}
}

func attachWords(segments []subtitles.Segment, words []subtitles.Word) {
	if len(segments) == 0 || len(words) == 0 {
		return
	}
	sorted := append([]subtitles.Word(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	idx := 0
	for _, word := range sorted {
		for idx < len(segments)-1 && word.Start >= segments[idx].End {
			idx++
		}
		word.Word = strings.TrimSpace(word.Word)
		segments[idx].Words = append(segments[idx].Words, word)
	}
}

func hasWords(segments []subtitles.Segment) bool {
	for _, seg := range segments {
		if len(seg.Words) > 0 {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
