package subtitles_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"reelsub/internal/subtitles"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		segments []subtitles.Segment
		wantErr  bool
	}{
		{name: "empty", segments: nil},
		{name: "ordered", segments: []subtitles.Segment{{Start: 0, End: 1}, {Start: 1, End: 2}}},
		{name: "equal starts", segments: []subtitles.Segment{{Start: 1, End: 2}, {Start: 1, End: 3}}},
		{name: "zero length", segments: []subtitles.Segment{{Start: 1, End: 1}}, wantErr: true},
		{name: "negative", segments: []subtitles.Segment{{Start: -1, End: 1}}, wantErr: true},
		{name: "decreasing", segments: []subtitles.Segment{{Start: 2, End: 3}, {Start: 1, End: 4}}, wantErr: true},
		{name: "nan", segments: []subtitles.Segment{{Start: math.NaN(), End: 1}}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := subtitles.Validate(tc.segments)
			if tc.wantErr {
				if !errors.Is(err, subtitles.ErrInvalidSegments) {
					t.Fatalf("expected ErrInvalidSegments, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyTextEdits(t *testing.T) {
	original := []subtitles.Segment{
		{Index: 0, Start: 0, End: 1, Text: "helo", Words: []subtitles.Word{{Word: "helo", Start: 0, End: 1}}},
		{Index: 1, Start: 1, End: 2, Text: "world", Words: []subtitles.Word{{Word: "world", Start: 1, End: 2}}},
	}
	edited, err := subtitles.ApplyTextEdits(original, map[int]string{0: "hello"})
	if err != nil {
		t.Fatalf("ApplyTextEdits: %v", err)
	}
	if edited[0].Text != "hello" || edited[0].Words != nil {
		t.Fatalf("expected edited text without words, got %#v", edited[0])
	}
	if len(edited[1].Words) != 1 {
		t.Fatalf("expected untouched segment to keep words, got %#v", edited[1])
	}
	if original[0].Text != "helo" || len(original[0].Words) != 1 {
		t.Fatalf("original segments mutated: %#v", original[0])
	}

	if _, err := subtitles.ApplyTextEdits(original, map[int]string{5: "x"}); !errors.Is(err, subtitles.ErrInvalidSegments) {
		t.Fatalf("expected out-of-range edit to fail, got %v", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	segments := []subtitles.Segment{
		{Index: 4, Start: 0, End: 1.5, Text: " Hello "},
		{Index: 9, Start: 1.5, End: 3, Text: "again"},
	}
	doc := subtitles.NewDocument("", "en", segments, 3)
	if doc.Text != "Hello again" {
		t.Fatalf("unexpected derived text %q", doc.Text)
	}
	if doc.Segments[0].Index != 0 || doc.Segments[1].Index != 1 {
		t.Fatalf("expected reindexed segments, got %#v", doc.Segments)
	}
	if segments[0].Index != 4 {
		t.Fatal("NewDocument mutated caller segments")
	}

	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"language": "en"`) {
		t.Fatalf("unexpected payload %s", data)
	}
	decoded, err := subtitles.UnmarshalDocument(data)
	if err != nil {
		t.Fatalf("UnmarshalDocument: %v", err)
	}
	if decoded.Text != doc.Text || len(decoded.Segments) != 2 || decoded.Segments[1].End != 3 {
		t.Fatalf("unexpected decoded document %#v", decoded)
	}
}

func TestEmptyDocumentEncodesSegmentsArray(t *testing.T) {
	data, err := subtitles.NewDocument("", "", nil, 0).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"segments": []`) {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := subtitles.ParseFormat(""); err != nil || f != subtitles.FormatSRT {
		t.Fatalf("expected default srt, got %q %v", f, err)
	}
	f, err := subtitles.ParseFormat("JSON")
	if err != nil || f != subtitles.FormatJSON {
		t.Fatalf("expected json, got %q %v", f, err)
	}
	if f.Filename("p1") != "subtitles_p1.json" || f.ContentType() != "application/json" {
		t.Fatalf("unexpected json metadata %q %q", f.Filename("p1"), f.ContentType())
	}
	if _, err := subtitles.ParseFormat("vtt"); err == nil {
		t.Fatal("expected vtt to be rejected")
	}
}
