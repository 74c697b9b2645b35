package subtitles

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedSRT reports text that cannot be parsed as SRT.
var ErrMalformedSRT = errors.New("malformed srt")

const (
	timestampArrow = " --> "
	// msEpsilon absorbs binary representation error (e.g. 0.29*1000 ==
	// 289.99999999999997) so truncation lands on the intended millisecond.
	msEpsilon = 1e-6
)

// Serialize renders segments as SRT: a 1-based index line, a timestamp line,
// the text, and a blank separator line per segment.
func Serialize(segments []Segment) string {
	var b strings.Builder
	b.Grow(len(segments) * 64)
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(seg.Start))
		b.WriteString(timestampArrow)
		b.WriteString(FormatTimestamp(seg.End))
		b.WriteByte('\n')
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, truncating to whole
// milliseconds. Hours are not capped at two digits.
func FormatTimestamp(seconds float64) string {
	ms := toMillis(seconds)
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	secs := (ms / 1000) % 60
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

func toMillis(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Floor(seconds*1000 + msEpsilon))
}

// ParseTimestamp converts HH:MM:SS,mmm (a '.' separator is also accepted)
// back to seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	sep := strings.LastIndexAny(value, ",.")
	if sep < 0 {
		return 0, fmt.Errorf("%w: timestamp %q lacks milliseconds", ErrMalformedSRT, value)
	}
	hms := strings.Split(value[:sep], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformedSRT, value)
	}
	hours, errH := strconv.ParseInt(hms[0], 10, 64)
	minutes, errM := strconv.ParseInt(hms[1], 10, 64)
	secs, errS := strconv.ParseInt(hms[2], 10, 64)
	millis, errMS := strconv.ParseInt(value[sep+1:], 10, 64)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformedSRT, value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || secs < 0 || secs > 59 || millis < 0 || millis > 999 {
		return 0, fmt.Errorf("%w: timestamp %q out of range", ErrMalformedSRT, value)
	}
	total := ((hours*60+minutes)*60+secs)*1000 + millis
	return float64(total) / 1000, nil
}

// Parse is the inverse of Serialize. Segment text may span several lines; a
// block ends at a blank line followed by another index/timestamp header or
// by the end of input.
func Parse(text string) ([]Segment, error) {
	text = strings.TrimPrefix(text, "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	var segments []Segment

	i := 0
	for i < len(lines) {
		if lines[i] == "" {
			i++
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err != nil {
			return nil, fmt.Errorf("%w: line %d: expected cue index, got %q", ErrMalformedSRT, i+1, lines[i])
		}
		if i+1 >= len(lines) {
			return nil, fmt.Errorf("%w: line %d: cue index without timing", ErrMalformedSRT, i+1)
		}
		start, end, err := parseTimingLine(lines[i+1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}

		textStart := i + 2
		textEnd, next := findBlockEnd(lines, textStart)
		body := ""
		if textStart < textEnd {
			body = strings.Join(lines[textStart:textEnd], "\n")
		}
		segments = append(segments, Segment{
			Index: len(segments),
			Start: start,
			End:   end,
			Text:  body,
		})
		i = next
	}
	return segments, nil
}

func parseTimingLine(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected timing line, got %q", ErrMalformedSRT, line)
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("%w: missing end timestamp in %q", ErrMalformedSRT, line)
	}
	end, err := ParseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// findBlockEnd returns the exclusive end of the text lines that begin at from
// and the index where scanning should resume. Text always owns at least one
// line so an empty caption survives a round trip.
func findBlockEnd(lines []string, from int) (int, int) {
	for k := from + 1; k < len(lines); k++ {
		if lines[k] != "" {
			continue
		}
		if k == len(lines)-2 && lines[k+1] == "" {
			return k, len(lines)
		}
		if k+2 < len(lines) && isCueHeader(lines[k+1], lines[k+2]) {
			return k, k + 1
		}
	}
	// Unterminated final block: drop trailing blank lines.
	end := len(lines)
	for end > from+1 && lines[end-1] == "" {
		end--
	}
	return end, len(lines)
}

func isCueHeader(indexLine, timingLine string) bool {
	if _, err := strconv.Atoi(strings.TrimSpace(indexLine)); err != nil {
		return false
	}
	_, _, err := parseTimingLine(timingLine)
	return err == nil
}
