package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"reelsub/internal/services"
)

// Position places captions on screen.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionCustom Position = "custom"
)

// Options are the caption style parameters for one export.
type Options struct {
	FontFamily        string   `json:"font_family" validate:"required,max=64,font_name"`
	FontSize          int      `json:"font_size" validate:"gt=0,lte=400"`
	FontColor         string   `json:"font_color" validate:"required,caption_color"`
	BackgroundColor   string   `json:"background_color" validate:"required,caption_color"`
	BackgroundOpacity float64  `json:"background_opacity" validate:"gte=0,lte=1"`
	Position          Position `json:"position" validate:"oneof=top bottom custom"`
	Margin            int      `json:"margin" validate:"gte=0"`
	RemoveWatermark   bool     `json:"remove_watermark"`
}

// DefaultOptions returns the house caption style.
func DefaultOptions() Options {
	return Options{
		FontFamily:        "Arial",
		FontSize:          24,
		FontColor:         "white",
		BackgroundColor:   "black",
		BackgroundOpacity: 0.7,
		Position:          PositionBottom,
		Margin:            50,
	}
}

// ParseOptions overlays raw JSON onto the defaults and validates the result.
// Empty input yields the defaults.
func ParseOptions(raw []byte) (Options, error) {
	opts := DefaultOptions()
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return Options{}, services.Wrap(services.ErrValidation, "export", "parse options", "malformed options", err)
		}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Marshal encodes options for the job payload.
func (o Options) Marshal() (json.RawMessage, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode export options: %w", err)
	}
	return data, nil
}

const filterSpecialChars = "'\"\\:,;=[]"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func optionsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("caption_color", func(fl validator.FieldLevel) bool {
			_, err := ParseColor(fl.Field().String())
			return err == nil
		})
		// Font names end up inside an ffmpeg filter argument.
		_ = validate.RegisterValidation("font_name", func(fl validator.FieldLevel) bool {
			return !strings.ContainsAny(fl.Field().String(), filterSpecialChars)
		})
	})
	return validate
}

// Validate checks every field against the options schema.
func (o Options) Validate() error {
	err := optionsValidator().Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return services.Wrap(services.ErrValidation, "export", "validate options", "", err)
	}
	return services.Wrap(services.ErrValidation, "export", "validate options",
		strings.Join(FormatValidationErrors(fieldErrs), "; "), nil)
}

// FormatValidationErrors renders validator failures one line per field.
func FormatValidationErrors(errs validator.ValidationErrors) []string {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, fe.Param())
		}
		messages = append(messages, msg)
	}
	return messages
}
