package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsub/internal/config"
	"reelsub/internal/language"
	"reelsub/internal/logging"
	"reelsub/internal/services"
	"reelsub/internal/subtitles"
)

const (
	transcriptionsPath = "/audio/transcriptions"
	maxErrorBody       = 4 << 10
)

// Request is the input for one transcription.
type Request struct {
	// MediaPath is a local file readable by ffmpeg.
	MediaPath string
	// Language is an ISO code or "auto".
	Language string
}

// Result is the provider output normalized to caption segments.
type Result struct {
	Text     string
	Language string
	Segments []subtitles.Segment
	Duration float64
}

// Document converts the result into the stored subtitle form.
func (r Result) Document() subtitles.Document {
	return subtitles.NewDocument(r.Text, r.Language, r.Segments, r.Duration)
}

// Transcriber converts media into segments.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ExtractAudio bool
	FFmpegBinary string
	TempDir      string
	Run          services.CommandRunner
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client talks to an OpenAI-compatible /audio/transcriptions endpoint.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a client from options.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "whisper-1"
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.Run == nil {
		opts.Run = services.RunCommand
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		opts:   opts,
		http:   httpClient,
		logger: logging.NewComponentLogger(logger, "transcription"),
	}
}

// NewFromConfig builds a client from application config.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(Options{
		BaseURL:      cfg.Transcription.BaseURL,
		APIKey:       cfg.Transcription.APIKey,
		Model:        cfg.Transcription.Model,
		Timeout:      time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
		ExtractAudio: cfg.Transcription.ExtractAudio,
		FFmpegBinary: cfg.FFmpegBinary(),
		TempDir:      cfg.Paths.TempDir,
		Logger:       logger,
	})
}

// Transcribe sends the media (or its extracted audio track) to the provider.
func (c *Client) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(c.opts.APIKey) == "" {
		return Result{}, services.WithHint(
			services.Wrap(services.ErrConfiguration, "transcription", "transcribe", "api key not configured", nil),
			"set transcription.api_key or REELSUB_TRANSCRIPTION_API_KEY")
	}
	hint, err := language.NormalizeHint(req.Language)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "transcription", "transcribe", "bad language hint", err)
	}

	uploadPath := req.MediaPath
	if c.opts.ExtractAudio {
		audioPath, err := c.extractAudio(ctx, req.MediaPath)
		if err != nil {
			return Result{}, err
		}
		defer func() { _ = os.Remove(audioPath) }()
		uploadPath = audioPath
	}

	body, contentType, err := buildForm(uploadPath, c.opts.Model, hint)
	if err != nil {
		return Result{}, services.Wrap(services.ErrStorage, "transcription", "prepare upload", filepath.Base(uploadPath), err)
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + transcriptionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "transcription", "build request", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	started := time.Now()
	logging.WithContext(ctx, c.logger).Debug("sending transcription request",
		logging.String("endpoint", endpoint),
		logging.String("language", hint),
		logging.String("model", c.opts.Model))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, services.Wrap(services.ErrTransientProvider, "transcription", "request", "provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, statusError(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, services.Wrap(services.ErrTransientProvider, "transcription", "decode", "malformed provider response", err)
	}

	result := payload.toResult(hint)
	logging.WithContext(ctx, c.logger).Info("transcription received",
		logging.Int("segments", len(result.Segments)),
		logging.String("language", result.Language),
		logging.Float64("media_duration_seconds", result.Duration),
		logging.Duration("elapsed", time.Since(started)))
	return result, nil
}

func (c *Client) extractAudio(ctx context.Context, mediaPath string) (string, error) {
	if err := os.MkdirAll(c.opts.TempDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "transcription", "extract audio", "create temp dir", err)
	}
	audioPath := filepath.Join(c.opts.TempDir, "temp_audio_"+uuid.NewString()+".mp3")
	err := c.opts.Run(ctx, c.opts.FFmpegBinary,
		"-hide_banner",
		"-loglevel", "error",
		"-i", mediaPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "4",
		"-y",
		audioPath,
	)
	if err != nil {
		_ = os.Remove(audioPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrPermanentInput, "transcription", "extract audio", "ffmpeg could not decode media", err)
	}
	return audioPath, nil
}

func buildForm(path, model, hint string) (io.Reader, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"model", model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
		{"timestamp_granularities[]", "word"},
	}
	if hint != language.Auto {
		fields = append(fields, [2]string{"language", hint})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// statusError maps a provider HTTP status onto the error taxonomy.
func statusError(code int, body string) error {
	msg := fmt.Sprintf("provider returned %d", code)
	cause := errors.New(body)
	if body == "" {
		cause = nil
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return services.WithHint(
			services.Wrap(services.ErrConfiguration, "transcription", "request", msg, cause),
			"check the transcription API key")
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return services.Wrap(services.ErrTransientProvider, "transcription", "request", msg, cause)
	default:
		return services.Wrap(services.ErrPermanentInput, "transcription", "request", msg, cause)
	}
}
