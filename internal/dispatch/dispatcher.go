package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"reelsub/internal/catalog"
	"reelsub/internal/config"
	"reelsub/internal/export"
	"reelsub/internal/language"
	"reelsub/internal/logging"
	"reelsub/internal/queue"
	"reelsub/internal/services"
	"reelsub/internal/status"
)

// TranscribeOptions is the payload carried by transcribe jobs.
type TranscribeOptions struct {
	Language string `json:"language"`
}

// DecodeTranscribeOptions reads the payload of a transcribe job.
func DecodeTranscribeOptions(raw json.RawMessage) (TranscribeOptions, error) {
	opts := TranscribeOptions{Language: language.Auto}
	if len(raw) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return TranscribeOptions{}, services.Wrap(services.ErrPermanentInput, "dispatch", "decode options", "bad transcribe payload", err)
	}
	if opts.Language == "" {
		opts.Language = language.Auto
	}
	return opts, nil
}

// Dispatcher enqueues transcription and export jobs.
type Dispatcher struct {
	catalog         *catalog.Store
	tracker         *status.Tracker
	queue           *queue.Store
	defaultLanguage string
	transcribeMax   int
	exportMax       int
	logger          *slog.Logger
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(cfg *config.Config, store *catalog.Store, tracker *status.Tracker, jobs *queue.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		catalog:         store,
		tracker:         tracker,
		queue:           jobs,
		defaultLanguage: cfg.Transcription.DefaultLanguage,
		transcribeMax:   cfg.Retry.TranscribeMaxAttempts,
		exportMax:       cfg.Retry.ExportMaxAttempts,
		logger:          logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Transcribe starts the first transcription of an uploaded project.
func (d *Dispatcher) Transcribe(ctx context.Context, projectID, lang string) (*queue.Job, error) {
	project, payload, err := d.prepareTranscription(ctx, projectID, lang)
	if err != nil {
		return nil, err
	}
	has, err := d.catalog.HasSubtitle(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, services.WithHint(
			services.Wrap(services.ErrValidation, "dispatch", "transcribe", "subtitles already exist", nil),
			"use regenerate to replace them")
	}
	if err := d.tracker.BeginTranscription(ctx, project.ID); err != nil {
		return nil, err
	}
	return d.enqueue(ctx, project, queue.KindTranscribe, payload, d.transcribeMax)
}

// Regenerate discards the current subtitle of a completed or failed project
// and transcribes it again.
func (d *Dispatcher) Regenerate(ctx context.Context, projectID, lang string) (*queue.Job, error) {
	project, payload, err := d.prepareTranscription(ctx, projectID, lang)
	if err != nil {
		return nil, err
	}
	if err := d.ensureIdle(ctx, project.ID); err != nil {
		return nil, err
	}
	if err := d.tracker.BeginRegeneration(ctx, project.ID); err != nil {
		return nil, err
	}
	return d.enqueue(ctx, project, queue.KindTranscribe, payload, d.transcribeMax)
}

// Export queues a burn-in render of a completed project. rawOptions is
// merged onto the default style.
func (d *Dispatcher) Export(ctx context.Context, projectID string, rawOptions []byte) (*queue.Job, error) {
	opts, err := export.ParseOptions(rawOptions)
	if err != nil {
		return nil, err
	}
	project, err := d.catalog.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != catalog.StatusCompleted {
		return nil, services.Wrap(services.ErrValidation, "dispatch", "export",
			fmt.Sprintf("project is %s; export needs completed subtitles", project.Status), nil)
	}
	has, err := d.catalog.HasSubtitle(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, services.Wrap(services.ErrValidation, "dispatch", "export", "project has no subtitles", nil)
	}
	payload, err := opts.Marshal()
	if err != nil {
		return nil, err
	}
	return d.enqueue(ctx, project, queue.KindExport, payload, d.exportMax)
}

func (d *Dispatcher) prepareTranscription(ctx context.Context, projectID, lang string) (*catalog.Project, json.RawMessage, error) {
	if lang == "" {
		lang = d.defaultLanguage
	}
	hint, err := language.NormalizeHint(lang)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "dispatch", "transcribe", "bad language", err)
	}
	project, err := d.catalog.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if project.MediaPath == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "dispatch", "transcribe", "project has no media", nil)
	}
	payload, err := json.Marshal(TranscribeOptions{Language: hint})
	if err != nil {
		return nil, nil, err
	}
	return project, payload, nil
}

func (d *Dispatcher) ensureIdle(ctx context.Context, projectID string) error {
	active, err := d.queue.ActiveForProject(ctx, projectID)
	if err != nil {
		return err
	}
	if active != nil {
		return fmt.Errorf("%w: job %s is %s", queue.ErrProjectBusy, active.ID, active.State)
	}
	return nil
}

// enqueue is the last step of every entry point. A transcription whose
// enqueue fails would leave the project processing with no job, so the
// project is marked failed; regenerate is always accepted from there.
func (d *Dispatcher) enqueue(ctx context.Context, project *catalog.Project, kind queue.Kind, payload json.RawMessage, maxAttempts int) (*queue.Job, error) {
	job, err := d.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:        kind,
		ProjectID:   project.ID,
		MediaPath:   project.MediaPath,
		Options:     payload,
		MaxAttempts: maxAttempts,
	})
	if err != nil {
		if kind == queue.KindTranscribe {
			_ = d.tracker.Fail(ctx, project.ID, err)
		}
		if errors.Is(err, queue.ErrProjectBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), d.logger).Info("job enqueued",
		logging.String(logging.FieldProjectID, project.ID),
		logging.String(logging.FieldJobKind, string(kind)),
		logging.Int("max_attempts", maxAttempts))
	return job, nil
}
