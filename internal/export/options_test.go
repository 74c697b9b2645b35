package export

import (
	"errors"
	"strings"
	"testing"

	"reelsub/internal/services"
)

func TestParseOptionsMergesDefaults(t *testing.T) {
	opts, err := ParseOptions([]byte(`{"font_size": 32, "position": "top"}`))
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	want := DefaultOptions()
	want.FontSize = 32
	want.Position = PositionTop
	if opts != want {
		t.Fatalf("got %#v, want %#v", opts, want)
	}

	defaults, err := ParseOptions(nil)
	if err != nil || defaults != DefaultOptions() {
		t.Fatalf("expected defaults, got %#v %v", defaults, err)
	}
}

func TestParseOptionsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"zero font size", `{"font_size": 0}`, "FontSize"},
		{"opacity above one", `{"background_opacity": 1.5}`, "BackgroundOpacity"},
		{"unknown position", `{"position": "left"}`, "Position"},
		{"negative margin", `{"margin": -1}`, "Margin"},
		{"bad color", `{"font_color": "mauve"}`, "FontColor"},
		{"filter injection", `{"font_family": "Arial',drawtext"}`, "FontFamily"},
		{"unknown field", `{"font_weight": 700}`, "unknown field"},
		{"malformed", `{`, "malformed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOptions([]byte(tc.raw))
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
		ok   bool
	}{
		{"white", RGB{0xFF, 0xFF, 0xFF}, true},
		{"Yellow", RGB{0xFF, 0xFF, 0x00}, true},
		{"#336699", RGB{0x33, 0x66, 0x99}, true},
		{"A0B1C2", RGB{0xA0, 0xB1, 0xC2}, true},
		{"#FFF", RGB{}, false},
		{"purple", RGB{}, false},
		{"zzzzzz", RGB{}, false},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		if tc.ok != (err == nil) || got != tc.want {
			t.Errorf("ParseColor(%q) = %#v, %v", tc.in, got, err)
		}
	}
}

func TestASSColorOrder(t *testing.T) {
	if got := ASSColor(RGB{R: 0x11, G: 0x22, B: 0x33}, 0x44); got != "&H44332211" {
		t.Fatalf("unexpected ass color %s", got)
	}
	if OpacityAlpha(1) != 0 || OpacityAlpha(0) != 0xFF || OpacityAlpha(0.7) != 0x4D {
		t.Fatalf("unexpected alpha values %x %x %x", OpacityAlpha(1), OpacityAlpha(0), OpacityAlpha(0.7))
	}
}

func TestForceStyle(t *testing.T) {
	style, err := DefaultOptions().ForceStyle()
	if err != nil {
		t.Fatalf("ForceStyle: %v", err)
	}
	for _, part := range []string{
		"FontName=Arial",
		"FontSize=24",
		"PrimaryColour=&H00FFFFFF",
		"BackColour=&H4D000000",
		"Alignment=2",
		"MarginV=50",
	} {
		if !strings.Contains(style, part) {
			t.Errorf("expected %q in %s", part, style)
		}
	}

	for pos, want := range map[Position]int{PositionTop: 8, PositionBottom: 2, PositionCustom: 5} {
		opts := DefaultOptions()
		opts.Position = pos
		if opts.Alignment() != want {
			t.Errorf("alignment for %s = %d, want %d", pos, opts.Alignment(), want)
		}
	}
}
