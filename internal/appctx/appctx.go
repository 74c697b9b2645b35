package appctx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"reelsub/internal/api"
	"reelsub/internal/blob"
	"reelsub/internal/catalog"
	"reelsub/internal/config"
	"reelsub/internal/database"
	"reelsub/internal/dispatch"
	"reelsub/internal/export"
	"reelsub/internal/logging"
	"reelsub/internal/media/ffprobe"
	"reelsub/internal/notifications"
	"reelsub/internal/queue"
	"reelsub/internal/services"
	"reelsub/internal/staging"
	"reelsub/internal/status"
	"reelsub/internal/transcription"
	"reelsub/internal/workflow"
)

// Services is the explicit service context.
type Services struct {
	Config      *config.Config
	Logger      *slog.Logger
	DB          *database.DB
	Catalog     *catalog.Store
	Queue       *queue.Store
	Tracker     *status.Tracker
	Blobs       *blob.FSStore
	Prober      dispatch.Prober
	Transcriber transcription.Transcriber
	Exporter    export.Exporter
	Notifier    notifications.Service
	Dispatcher  *dispatch.Dispatcher
	Intake      *dispatch.Intake
}

// Option overrides a collaborator before dependents are wired.
type Option func(*options)

type options struct {
	transcriber transcription.Transcriber
	exporter    export.Exporter
	prober      dispatch.Prober
	notifier    notifications.Service
	run         services.CommandRunner
}

// WithTranscriber replaces the HTTP transcription client.
func WithTranscriber(t transcription.Transcriber) Option {
	return func(o *options) { o.transcriber = t }
}

// WithExporter replaces the ffmpeg renderer.
func WithExporter(e export.Exporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithProber replaces the ffprobe media inspector.
func WithProber(p dispatch.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithCommandRunner sets the runner the default renderer uses for ffmpeg.
func WithCommandRunner(run services.CommandRunner) Option {
	return func(o *options) { o.run = run }
}

// New opens storage and wires every service. Call Close when done.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	signer, err := blob.NewSigner(cfg.Export.SigningKey)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "appctx", "signer", "export.signing_key", err)
	}
	blobs, err := blob.NewFSStore(cfg.Paths.BlobDir, cfg.Paths.PublicBaseURL, signer)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Services{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Catalog: catalog.NewStore(db),
		Queue:   queue.NewStore(db),
		Blobs:   blobs,
	}
	s.Tracker = status.NewTracker(s.Catalog, logger)

	s.Prober = o.prober
	if s.Prober == nil {
		s.Prober = ffprobe.NewProber(cfg.FFprobeBinary())
	}
	s.Transcriber = o.transcriber
	if s.Transcriber == nil {
		s.Transcriber = transcription.NewFromConfig(cfg, logger)
	}
	s.Exporter = o.exporter
	if s.Exporter == nil {
		s.Exporter = export.NewRenderer(blobs, export.SettingsFromConfig(cfg), o.run, logger)
	}
	s.Notifier = o.notifier
	if s.Notifier == nil {
		s.Notifier = notifications.NewService(cfg)
	}

	s.Dispatcher = dispatch.NewDispatcher(cfg, s.Catalog, s.Tracker, s.Queue, logger)
	s.Intake = dispatch.NewIntake(cfg.Limits, s.Catalog, blobs, s.Prober, logger)
	return s, nil
}

// Workflow builds the worker pool manager with both job executors.
func (s *Services) Workflow() *workflow.Manager {
	return workflow.NewManager(s.Config, workflow.Dependencies{
		Queue:      s.Queue,
		Catalog:    s.Catalog,
		Tracker:    s.Tracker,
		Transcribe: workflow.NewTranscribeExecutor(s.Catalog, s.Blobs, s.Transcriber, s.Config.Paths.TempDir, s.Logger),
		Export:     workflow.NewExportExecutor(s.Catalog, s.Exporter),
		Notifier:   s.Notifier,
	}, s.Logger)
}

// Sweeper builds the temp-area cleanup sweeper.
func (s *Services) Sweeper() *staging.Sweeper {
	return staging.NewSweeper(s.Config, s.Logger)
}

// Router builds the HTTP API handler.
func (s *Services) Router(statusFn api.StatusFunc, hub *logging.StreamHub) http.Handler {
	return api.NewRouter(s.Config, api.Dependencies{
		Catalog:    s.Catalog,
		Queue:      s.Queue,
		Dispatcher: s.Dispatcher,
		Intake:     s.Intake,
		Blobs:      s.Blobs,
		Status:     statusFn,
		Logs:       hub,
	}, s.Logger)
}

// Close releases the database.
func (s *Services) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
