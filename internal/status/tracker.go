package status

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"reelsub/internal/catalog"
	"reelsub/internal/logging"
	"reelsub/internal/services"
)

// Tracker applies project status transitions.
type Tracker struct {
	catalog *catalog.Store
	logger  *slog.Logger
}

// NewTracker binds a tracker to the catalog.
func NewTracker(store *catalog.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		catalog: store,
		logger:  logging.NewComponentLogger(logger, "status"),
	}
}

// Current returns the persisted status of a project.
func (t *Tracker) Current(ctx context.Context, projectID string) (catalog.Status, error) {
	project, err := t.catalog.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return project.Status, nil
}

// Transition moves a project to next if the move is legal from its current
// status. Leaving completed or failed requires BeginRegeneration.
func (t *Tracker) Transition(ctx context.Context, projectID string, next catalog.Status) error {
	return t.transition(ctx, projectID, directSources(next), next)
}

// BeginTranscription moves a freshly uploaded project to processing.
func (t *Tracker) BeginTranscription(ctx context.Context, projectID string) error {
	return t.transition(ctx, projectID, []catalog.Status{catalog.StatusUploading}, catalog.StatusProcessing)
}

// BeginRegeneration moves a completed or failed project back to processing,
// deleting its subtitle first. A reader racing this call may briefly see no
// subtitle while the status still reads completed.
func (t *Tracker) BeginRegeneration(ctx context.Context, projectID string) error {
	from := []catalog.Status{catalog.StatusCompleted, catalog.StatusFailed}
	current, err := t.Current(ctx, projectID)
	if err != nil {
		return err
	}
	if !slices.Contains(from, current) {
		return t.reject(ctx, projectID, current, catalog.StatusProcessing)
	}
	removed, err := t.catalog.DeleteSubtitle(ctx, projectID)
	if err != nil {
		return err
	}
	if removed {
		logging.WithContext(ctx, t.logger).Info("previous subtitle removed for regeneration",
			logging.String(logging.FieldProjectID, projectID))
	}
	return t.transition(ctx, projectID, from, catalog.StatusProcessing)
}

// Complete marks a processing project completed. Callers record the artifact
// before calling it.
func (t *Tracker) Complete(ctx context.Context, projectID string) error {
	return t.transition(ctx, projectID, []catalog.Status{catalog.StatusProcessing}, catalog.StatusCompleted)
}

// Fail marks a processing project failed. A failure to record the status is
// logged and returned but callers must not retry it.
func (t *Tracker) Fail(ctx context.Context, projectID string, cause error) error {
	err := t.transition(ctx, projectID, []catalog.Status{catalog.StatusProcessing}, catalog.StatusFailed)
	if err != nil {
		attrs := []logging.Attr{
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldImpact, "project status may not reflect the job failure"),
			logging.String(logging.FieldErrorHint, "inspect the project and regenerate if needed"),
		}
		attrs = append(attrs, logging.ErrorAttrs(err)...)
		if cause != nil {
			attrs = append(attrs, logging.String("cause", cause.Error()))
		}
		logging.ErrorWithContext(logging.WithContext(ctx, t.logger), "failed to record project failure", "status_fail_unrecorded", attrs...)
	}
	return err
}

func (t *Tracker) transition(ctx context.Context, projectID string, from []catalog.Status, next catalog.Status) error {
	if len(from) == 0 {
		return &TransitionError{ProjectID: projectID, To: next}
	}
	changed, current, err := t.catalog.CompareAndSetStatus(ctx, projectID, from, next)
	if err != nil {
		attrs := []logging.Attr{
			logging.String(logging.FieldProjectID, projectID),
			logging.String("to", string(next)),
		}
		attrs = append(attrs, logging.ErrorAttrs(err)...)
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "status write failed", "status_write_failed", attrs...)
		return err
	}
	if !changed {
		return t.reject(ctx, projectID, current, next)
	}
	logging.WithContext(ctx, t.logger).Info("project status changed",
		logging.String(logging.FieldProjectID, projectID),
		logging.String("status", string(next)))
	return nil
}

func (t *Tracker) reject(ctx context.Context, projectID string, from, to catalog.Status) error {
	err := &TransitionError{ProjectID: projectID, From: from, To: to}
	logging.WarnWithContext(logging.WithContext(ctx, t.logger), "status transition rejected", "status_transition_rejected",
		logging.String(logging.FieldProjectID, projectID),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.String(logging.FieldErrorKind, string(services.KindInvalidTransition)),
		logging.String(logging.FieldImpact, "requested work was not started"),
		logging.String(logging.FieldErrorHint, "wait for the active job or regenerate from completed/failed"),
	)
	return err
}

// IsTransitionError reports whether err is a rejected transition.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
