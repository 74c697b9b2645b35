package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsub/internal/blob"
	"reelsub/internal/config"
	"reelsub/internal/logging"
	"reelsub/internal/services"
	"reelsub/internal/subtitles"
	"reelsub/internal/textutil"
)

// Request describes one export.
type Request struct {
	ProjectID string
	Owner     string
	// MediaKey is the blob key of the source video.
	MediaKey string
	Segments []subtitles.Segment
	Options  Options
}

// Result identifies the rendered artifact.
type Result struct {
	ArtifactRef string
	URL         string
	SizeBytes   int64
}

// Exporter renders captioned video.
type Exporter interface {
	Render(ctx context.Context, req Request) (Result, error)
}

// Settings configures a Renderer.
type Settings struct {
	TempDir       string
	FFmpegBinary  string
	VideoCodec    string
	AudioCodec    string
	Preset        string
	WatermarkText string
	URLTTL        time.Duration
}

// Renderer burns captions with ffmpeg.
type Renderer struct {
	blobs    blob.Store
	settings Settings
	run      services.CommandRunner
	logger   *slog.Logger
}

// NewRenderer builds a renderer. run defaults to services.RunCommand.
func NewRenderer(blobs blob.Store, settings Settings, run services.CommandRunner, logger *slog.Logger) *Renderer {
	if run == nil {
		run = services.RunCommand
	}
	if settings.FFmpegBinary == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	if settings.TempDir == "" {
		settings.TempDir = os.TempDir()
	}
	if settings.URLTTL <= 0 {
		settings.URLTTL = time.Hour
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Renderer{
		blobs:    blobs,
		settings: settings,
		run:      run,
		logger:   logging.NewComponentLogger(logger, "export"),
	}
}

// SettingsFromConfig maps application config onto renderer settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		TempDir:       cfg.Paths.TempDir,
		FFmpegBinary:  cfg.FFmpegBinary(),
		VideoCodec:    cfg.Export.VideoCodec,
		AudioCodec:    cfg.Export.AudioCodec,
		Preset:        cfg.Export.Preset,
		WatermarkText: cfg.Export.WatermarkText,
		URLTTL:        cfg.SignedURLTTL(),
	}
}

// Render fetches the source, writes the caption file, runs ffmpeg, and
// uploads the output to <owner>/exports/export_<uuid>.mp4.
func (r *Renderer) Render(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Owner) == "" || strings.TrimSpace(req.MediaKey) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "export", "render", "owner and media key are required", nil)
	}
	if err := req.Options.Validate(); err != nil {
		return Result{}, err
	}
	forceStyle, err := req.Options.ForceStyle()
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "export", "render", "style", err)
	}

	workspace := filepath.Join(r.settings.TempDir, "temp_export_"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrStorage, "export", "workspace", "create", err)
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "export workspace not removed", "export_cleanup_failed",
				logging.String("workspace", workspace),
				logging.Error(err),
				logging.String(logging.FieldImpact, "temporary files remain until the sweeper runs"),
				logging.String(logging.FieldErrorHint, "check temp directory permissions"))
		}
	}()

	source := filepath.Join(workspace, "source"+path.Ext(req.MediaKey))
	if err := r.blobs.Fetch(ctx, req.MediaKey, source); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Result{}, services.Wrap(services.ErrPermanentInput, "export", "fetch source", "source media missing", err)
		}
		return Result{}, err
	}

	captions := filepath.Join(workspace, "captions.srt")
	if err := os.WriteFile(captions, []byte(subtitles.Serialize(req.Segments)), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrStorage, "export", "write captions", "", err)
	}

	output := filepath.Join(workspace, "output.mp4")
	args := r.buildArgs(source, captions, output, forceStyle, req.Options)
	started := time.Now()
	if err := r.run(ctx, r.settings.FFmpegBinary, args...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, transcodeError(err)
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrTransientProvider, "export", "transcode", "ffmpeg produced no output", err)
	}

	key := path.Join(textutil.KeySegment(req.Owner), "exports", "export_"+uuid.NewString()+".mp4")
	ref, err := r.blobs.UploadFile(ctx, key, output)
	if err != nil {
		return Result{}, err
	}
	url, err := r.blobs.Sign(ref, r.settings.URLTTL)
	if err != nil {
		return Result{}, err
	}

	logging.WithContext(ctx, r.logger).Info("export rendered",
		logging.String("artifact_ref", ref),
		logging.Int64("size_bytes", info.Size()),
		logging.Int("segments", len(req.Segments)),
		logging.Duration("elapsed", time.Since(started)))
	return Result{ArtifactRef: ref, URL: url, SizeBytes: info.Size()}, nil
}

func (r *Renderer) buildArgs(source, captions, output, forceStyle string, opts Options) []string {
	filter := fmt.Sprintf("subtitles=filename=%s:force_style='%s'", escapeFilterValue(captions), forceStyle)
	if !opts.RemoveWatermark && strings.TrimSpace(r.settings.WatermarkText) != "" {
		filter += fmt.Sprintf(",drawtext=text='%s':fontcolor=white@0.6:fontsize=h/30:x=w-tw-20:y=20",
			escapeDrawText(r.settings.WatermarkText))
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", source,
		"-vf", filter,
	}
	if r.settings.VideoCodec != "" {
		args = append(args, "-c:v", r.settings.VideoCodec)
	}
	if r.settings.Preset != "" {
		args = append(args, "-preset", r.settings.Preset)
	}
	if r.settings.AudioCodec != "" {
		args = append(args, "-c:a", r.settings.AudioCodec)
	}
	args = append(args, "-movflags", "+faststart", output)
	return args
}

// escapeFilterValue escapes an unquoted filter option value.
// decodeFailures are ffmpeg diagnostics for a source it cannot read. Retrying
// those never helps.
var decodeFailures = []string{
	"invalid data found when processing input",
	"moov atom not found",
	"could not find codec parameters",
	"does not contain any stream",
	"error while decoding",
	"unsupported codec",
	"decoder not found",
}

func transcodeError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range decodeFailures {
		if strings.Contains(msg, marker) {
			return services.WithHint(
				services.Wrap(services.ErrPermanentInput, "export", "transcode", "ffmpeg could not decode source", err),
				"re-upload the video in a supported format")
		}
	}
	return services.Wrap(services.ErrTransientProvider, "export", "transcode", "ffmpeg failed", err)
}

func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `,`, `\,`, `[`, `\[`, `]`, `\]`, `;`, `\;`)
	return replacer.Replace(value)
}

// escapeDrawText escapes text placed inside single quotes in a drawtext
// option; a quote has to close the string, be escaped, and reopen it.
func escapeDrawText(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `'\''`, `%`, `\%`, `:`, `\:`)
	return replacer.Replace(value)
}
