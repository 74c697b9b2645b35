package ffprobe

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"reelsub/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestInspectUsesRunner(t *testing.T) {
	var gotArgs []string
	prober := &Prober{Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"video","width":1920}],"format":{"duration":"12.5"}}`), nil
	}}
	result, err := prober.Inspect(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.DurationSeconds() != 12.5 {
		t.Fatalf("unexpected result %#v", result)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/clip.mp4" || !slices.Contains(gotArgs, "-show_streams") {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json to be kept")
	}
}

func TestInspectFailuresArePermanent(t *testing.T) {
	failing := &Prober{Run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("Invalid data found when processing input")
	}}
	if _, err := failing.Inspect(context.Background(), "x.mp4"); !errors.Is(err, services.ErrPermanentInput) {
		t.Fatalf("expected permanent input error, got %v", err)
	}
	garbage := &Prober{Run: func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	}}
	if _, err := garbage.Inspect(context.Background(), "x.mp4"); !errors.Is(err, services.ErrPermanentInput) {
		t.Fatalf("expected permanent input error, got %v", err)
	}
}
