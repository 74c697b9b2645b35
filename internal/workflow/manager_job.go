package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsub/internal/logging"
	"reelsub/internal/queue"
	"reelsub/internal/retry"
	"reelsub/internal/services"
	"reelsub/internal/status"
)

// processJob runs one attempt and applies the retry decision.
func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithProjectID(jobCtx, job.ProjectID)
	jobCtx = services.WithJobKind(jobCtx, string(job.Kind))
	logger := logging.WithContext(jobCtx, workerLogger).With(logging.Int(logging.FieldAttempt, job.Attempt))

	m.jobStarted(jobCtx, job)
	defer m.jobFinished(jobCtx)

	started := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("media_path", job.MediaPath))

	result, err := m.execute(jobCtx, job)
	if ctx.Err() != nil {
		m.release(jobCtx, logger, job)
		return
	}
	if errors.Is(err, queue.ErrNotRunning) {
		// The claim was reclaimed; the current owner records the outcome.
		logger.Warn("job attempt abandoned",
			logging.String(logging.FieldEventType, "job_abandoned"),
			logging.String(logging.FieldImpact, "outcome left to the worker that owns the claim"),
			logging.Error(err))
		return
	}

	outcome := retry.Failure(err)
	decision := m.policyFor(job).Decide(outcome, job.Attempt, job.StorageFailures)
	// Write outcomes even if the attempt consumed its deadline.
	finishCtx := context.WithoutCancel(jobCtx)
	switch decision.Action {
	case retry.ActionComplete:
		m.complete(finishCtx, logger, job, result, time.Since(started))
	case retry.ActionRetry:
		m.scheduleRetry(finishCtx, logger, job, outcome, decision)
	default:
		m.fail(finishCtx, logger, job, outcome, decision)
	}
}

func (m *Manager) execute(ctx context.Context, job *queue.Job) (queue.Result, error) {
	executor, ok := m.executors[job.Kind]
	if !ok {
		return queue.Result{}, services.Wrap(services.ErrConfiguration, "workflow", "execute", "no executor for job kind "+string(job.Kind), nil)
	}

	attemptCtx := ctx
	if m.hardLimit > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, m.hardLimit)
		defer cancel()
	}
	if m.softLimit > 0 {
		attemptCtx = withSoftDeadline(attemptCtx, time.Now().Add(m.softLimit))
	}

	attemptCtx, claimLost := context.WithCancelCause(attemptCtx)
	defer claimLost(nil)

	hbCtx, hbCancel := context.WithCancel(attemptCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job, claimLost)

	result, err := executor.Execute(attemptCtx, job)
	hbCancel()
	hbWG.Wait()

	if cause := context.Cause(attemptCtx); errors.Is(cause, queue.ErrNotRunning) {
		return result, cause
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.WithHint(
			services.Wrap(services.ErrTransientProvider, "workflow", "execute", "hard time limit reached", err),
			"the job will retry; raise workers.hard_limit_seconds for long media")
	}
	return result, err
}

// policyFor returns the backoff for the job's kind with the retry budget the
// job was enqueued with.
func (m *Manager) policyFor(job *queue.Job) retry.Policy {
	policy := m.policies[job.Kind]
	policy.MaxAttempts = job.MaxAttempts
	return policy
}

func (m *Manager) complete(ctx context.Context, logger *slog.Logger, job *queue.Job, result queue.Result, elapsed time.Duration) {
	if result.ProjectID == "" {
		result.ProjectID = job.ProjectID
	}
	if result.Status == "" {
		result.Status = string(queue.StateCompleted)
	}
	if tracksProjectStatus(job.Kind) {
		if err := m.tracker.Complete(ctx, job.ProjectID); err != nil && !status.IsTransitionError(err) {
			// The subtitle write is an upsert, so running the job again is safe.
			outcome := retry.Failure(err)
			decision := m.policyFor(job).Decide(outcome, job.Attempt, job.StorageFailures)
			if decision.Action == retry.ActionRetry {
				m.scheduleRetry(ctx, logger, job, outcome, decision)
			} else {
				m.fail(ctx, logger, job, outcome, decision)
			}
			return
		}
	}
	if err := m.store.Complete(ctx, job, result); err != nil {
		m.persistFailed(logger, "complete", err)
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("segments", result.SegmentsCount),
		logging.String("artifact_ref", result.ArtifactRef),
		logging.Duration("job_duration", elapsed))
	m.setLastJob(job)
	m.notifyCompleted(ctx, job, result)
}

func (m *Manager) scheduleRetry(ctx context.Context, logger *slog.Logger, job *queue.Job, outcome retry.Outcome, decision retry.Decision) {
	details := services.Details(outcome.Err)
	err := m.store.ScheduleRetry(ctx, job, queue.RetryRequest{
		Delay:          decision.Delay,
		ErrorMessage:   outcome.Err.Error(),
		ErrorKind:      string(outcome.Kind),
		StorageFailure: outcome.Kind == services.KindStorage,
	})
	if err != nil {
		m.persistFailed(logger, "retry", err)
		return
	}
	m.setLastError(outcome.Err)
	logging.WarnWithContext(logger, "job attempt failed; retry scheduled", "job_retry_scheduled",
		logging.String(logging.FieldErrorKind, string(outcome.Kind)),
		logging.String(logging.FieldErrorHint, hintOr(details.Hint, "no action needed unless retries are exhausted")),
		logging.String(logging.FieldImpact, "project stays processing until the retry runs"),
		logging.Duration("retry_delay", decision.Delay),
		logging.Int("next_attempt", job.Attempt+1),
		logging.Error(outcome.Err))
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, outcome retry.Outcome, decision retry.Decision) {
	details := services.Details(outcome.Err)
	message := "job failed"
	if outcome.Err != nil {
		message = outcome.Err.Error()
	}
	if tracksProjectStatus(job.Kind) {
		// Failure to record the project status is logged by the tracker and
		// never retried.
		_ = m.tracker.Fail(ctx, job.ProjectID, outcome.Err)
	}
	result := queue.Result{ProjectID: job.ProjectID, Status: string(queue.StateFailed), Error: message}
	if err := m.store.Fail(ctx, job, result, string(outcome.Kind)); err != nil {
		m.persistFailed(logger, "fail", err)
		return
	}
	m.setLastError(outcome.Err)
	m.setLastJob(job)

	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, string(outcome.Kind)),
		logging.String(logging.FieldErrorHint, hintOr(details.Hint, "fix the cause and regenerate or export again")),
		logging.String("reason", decision.Reason),
		logging.Alert("job_failure"),
		logging.Error(outcome.Err),
	}
	if outcome.Kind == services.KindInvalidTransition {
		attrs = append(attrs, logging.String(logging.FieldImpact, "state machine defect; report it"))
	}
	logging.ErrorWithContext(logger, "job failed", "job_failure", attrs...)
	m.notifyFailed(ctx, job, outcome.Err)
}

// release hands an interrupted job back to the queue during shutdown.
func (m *Manager) release(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if err := m.store.Release(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("failed to release interrupted job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_release_failed"),
			logging.String(logging.FieldErrorHint, "the job is reclaimed after the heartbeat timeout"),
			logging.String(logging.FieldImpact, "job restarts later than usual"))
		return
	}
	logger.Info("job released for shutdown")
}

func (m *Manager) persistFailed(logger *slog.Logger, operation string, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to record job outcome", "job_persist_failed",
		logging.String("operation", operation),
		logging.String(logging.FieldErrorHint, "check queue database access; the job is reclaimed after the heartbeat timeout"),
		logging.Error(err))
}

// Export jobs run against completed projects and must not move them.
func tracksProjectStatus(kind queue.Kind) bool {
	return kind == queue.KindTranscribe
}

func hintOr(hint, fallback string) string {
	if hint != "" {
		return hint
	}
	return fallback
}
