package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var namedColors = map[string]string{
	"white":  "FFFFFF",
	"black":  "000000",
	"red":    "FF0000",
	"green":  "00FF00",
	"blue":   "0000FF",
	"yellow": "FFFF00",
}

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseColor accepts a named color, "#RRGGBB", or "RRGGBB".
func ParseColor(value string) (RGB, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if hex, ok := namedColors[v]; ok {
		v = hex
	}
	v = strings.TrimPrefix(v, "#")
	if len(v) != 6 {
		return RGB{}, fmt.Errorf("unsupported color %q", value)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("unsupported color %q", value)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// ASSColor renders an &HAABBGGRR color where alpha 0x00 is opaque.
func ASSColor(c RGB, alpha uint8) string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", alpha, c.B, c.G, c.R)
}

// OpacityAlpha converts a 0..1 opacity to ASS alpha.
func OpacityAlpha(opacity float64) uint8 {
	opacity = math.Max(0, math.Min(1, opacity))
	return uint8(math.Round((1 - opacity) * 255))
}

// Alignment returns the ASS numpad alignment for the caption position.
func (o Options) Alignment() int {
	switch o.Position {
	case PositionTop:
		return 8
	case PositionCustom:
		return 5
	default:
		return 2
	}
}

// ForceStyle renders the options as a libass force_style value. Background
// boxes use BorderStyle 3, which paints OutlineColour behind each line.
func (o Options) ForceStyle() (string, error) {
	font, err := ParseColor(o.FontColor)
	if err != nil {
		return "", err
	}
	bg, err := ParseColor(o.BackgroundColor)
	if err != nil {
		return "", err
	}
	bgColor := ASSColor(bg, OpacityAlpha(o.BackgroundOpacity))
	parts := []string{
		"FontName=" + o.FontFamily,
		"FontSize=" + strconv.Itoa(o.FontSize),
		"PrimaryColour=" + ASSColor(font, 0),
		"OutlineColour=" + bgColor,
		"BackColour=" + bgColor,
		"BorderStyle=3",
		"Outline=1",
		"Shadow=0",
		"Alignment=" + strconv.Itoa(o.Alignment()),
		"MarginV=" + strconv.Itoa(o.Margin),
	}
	return strings.Join(parts, ","), nil
}
