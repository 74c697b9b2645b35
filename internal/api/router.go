package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"reelsub/internal/catalog"
	"reelsub/internal/config"
	"reelsub/internal/dispatch"
	"reelsub/internal/logging"
	"reelsub/internal/queue"
)

// BlobServer serves signed artifact downloads.
type BlobServer interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Verify(token, key string) error
}

// StatusFunc reports daemon status for GET /api/status.
type StatusFunc func(ctx context.Context) DaemonStatus

// Dependencies are the services the HTTP surface calls into.
type Dependencies struct {
	Catalog    *catalog.Store
	Queue      *queue.Store
	Dispatcher *dispatch.Dispatcher
	Intake     *dispatch.Intake
	Blobs      BlobServer
	Status     StatusFunc
	Logs       *logging.StreamHub
}

// Server holds handler state.
type Server struct {
	deps         Dependencies
	token        string
	tempDir      string
	uploadPrefix string
	maxUpload    int64
	logger       *slog.Logger
}

// NewRouter builds the chi router for the daemon API.
func NewRouter(cfg *config.Config, deps Dependencies, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		deps:         deps,
		token:        cfg.Paths.APIToken,
		tempDir:      cfg.Paths.TempDir,
		uploadPrefix: cfg.Cleanup.Prefix,
		maxUpload:    cfg.Limits.MaxUploadBytes,
		logger:       logger.With(logging.String(logging.FieldComponent, "api-server")),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(s.requestContext)
	r.Use(cors.Handler(corsOptions(nil)))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/status", s.handleStatus)
		r.Get("/logs", s.handleLogs)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleUpload)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Post("/transcribe", s.handleTranscribe)
			r.Post("/regenerate", s.handleRegenerate)
			r.Post("/export", s.handleExport)
			r.Get("/subtitles", s.handleGetSubtitles)
			r.Put("/subtitles", s.handleEditSubtitles)
		})
	})
	r.Get("/blobs/*", s.handleBlob)

	return r
}
