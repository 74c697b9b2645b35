package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reelsub/internal/blob"
	"reelsub/internal/catalog"
	"reelsub/internal/dispatch"
	"reelsub/internal/export"
	"reelsub/internal/logging"
	"reelsub/internal/queue"
	"reelsub/internal/services"
	"reelsub/internal/transcription"
)

// Executor performs one attempt of a job. A nil error means the artifact is
// durably recorded.
type Executor interface {
	Execute(ctx context.Context, job *queue.Job) (queue.Result, error)
}

// TranscribeExecutor fetches the project media, transcribes it, and replaces
// the project subtitle.
type TranscribeExecutor struct {
	catalog     *catalog.Store
	blobs       blob.Store
	transcriber transcription.Transcriber
	tempDir     string
	logger      *slog.Logger
}

// NewTranscribeExecutor wires a transcription executor.
func NewTranscribeExecutor(store *catalog.Store, blobs blob.Store, transcriber transcription.Transcriber, tempDir string, logger *slog.Logger) *TranscribeExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TranscribeExecutor{
		catalog:     store,
		blobs:       blobs,
		transcriber: transcriber,
		tempDir:     tempDir,
		logger:      logging.NewComponentLogger(logger, "transcribe-executor"),
	}
}

// Execute implements Executor.
func (e *TranscribeExecutor) Execute(ctx context.Context, job *queue.Job) (queue.Result, error) {
	opts, err := dispatch.DecodeTranscribeOptions(job.Options)
	if err != nil {
		return queue.Result{}, err
	}
	local, cleanup, err := e.stageMedia(ctx, job.MediaPath)
	if err != nil {
		return queue.Result{}, err
	}
	defer cleanup()

	if err := CheckSoftLimit(ctx, "transcribe"); err != nil {
		return queue.Result{}, err
	}
	result, err := e.transcriber.Transcribe(ctx, transcription.Request{MediaPath: local, Language: opts.Language})
	if err != nil {
		return queue.Result{}, err
	}
	if err := CheckSoftLimit(ctx, "persist subtitle"); err != nil {
		return queue.Result{}, err
	}
	sub, err := e.catalog.ReplaceSubtitle(ctx, job.ProjectID, result.Document())
	if err != nil {
		return queue.Result{}, err
	}
	return queue.Result{
		ProjectID:     job.ProjectID,
		Status:        string(catalog.StatusCompleted),
		ArtifactRef:   sub.ID,
		SegmentsCount: len(result.Segments),
		Duration:      result.Duration,
	}, nil
}

// stageMedia copies the blob to a temp file the transcoder can read.
func (e *TranscribeExecutor) stageMedia(ctx context.Context, key string) (string, func(), error) {
	if strings.TrimSpace(key) == "" {
		return "", func() {}, services.Wrap(services.ErrPermanentInput, "transcribe-executor", "stage media", "job has no media", nil)
	}
	local := filepath.Join(e.tempDir, fmt.Sprintf("temp_media_%s%s", uuid.NewString(), path.Ext(key)))
	cleanup := func() {
		if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logging.WithContext(ctx, e.logger), "failed to remove staged media", "temp_cleanup_failed",
				logging.String("path", local),
				logging.String(logging.FieldImpact, "temp file remains until the next sweep"),
				logging.Error(err))
		}
	}
	if err := e.blobs.Fetch(ctx, key, local); err != nil {
		cleanup()
		if errors.Is(err, services.ErrNotFound) {
			return "", func() {}, services.Wrap(services.ErrPermanentInput, "transcribe-executor", "stage media", "source media is missing", err)
		}
		return "", func() {}, err
	}
	return local, cleanup, nil
}

// ExportExecutor renders the project subtitle into its video and records
// the artifact on the project.
type ExportExecutor struct {
	catalog  *catalog.Store
	exporter export.Exporter
}

// NewExportExecutor wires an export executor.
func NewExportExecutor(store *catalog.Store, exporter export.Exporter) *ExportExecutor {
	return &ExportExecutor{catalog: store, exporter: exporter}
}

// Execute implements Executor.
func (e *ExportExecutor) Execute(ctx context.Context, job *queue.Job) (queue.Result, error) {
	opts, err := export.ParseOptions(job.Options)
	if err != nil {
		return queue.Result{}, services.Wrap(services.ErrPermanentInput, "export-executor", "options", "stored options are invalid", err)
	}
	project, err := e.catalog.GetProject(ctx, job.ProjectID)
	if err != nil {
		return queue.Result{}, asPermanentIfMissing(err)
	}
	sub, err := e.catalog.GetSubtitle(ctx, job.ProjectID)
	if err != nil {
		return queue.Result{}, asPermanentIfMissing(err)
	}
	doc, err := sub.Document()
	if err != nil {
		return queue.Result{}, services.Wrap(services.ErrPermanentInput, "export-executor", "decode subtitle", "stored subtitle is unreadable", err)
	}
	if err := CheckSoftLimit(ctx, "render"); err != nil {
		return queue.Result{}, err
	}
	rendered, err := e.exporter.Render(ctx, export.Request{
		ProjectID: project.ID,
		Owner:     project.Owner,
		MediaKey:  project.MediaPath,
		Segments:  doc.Segments,
		Options:   opts,
	})
	if err != nil {
		return queue.Result{}, err
	}
	if err := e.catalog.SetExportRef(ctx, project.ID, rendered.ArtifactRef); err != nil {
		return queue.Result{}, err
	}
	return queue.Result{
		ProjectID:     project.ID,
		Status:        string(catalog.StatusCompleted),
		ArtifactRef:   rendered.ArtifactRef,
		ArtifactURL:   rendered.URL,
		SegmentsCount: len(doc.Segments),
	}, nil
}

// A project or subtitle deleted while its job waited will never appear.
func asPermanentIfMissing(err error) error {
	if errors.Is(err, services.ErrNotFound) {
		return services.Wrap(services.ErrPermanentInput, "export-executor", "load project", "project data is gone", err)
	}
	return err
}
