package workflow

import (
	"context"
	"errors"
	"time"

	"reelsub/internal/logging"
	"reelsub/internal/notifications"
	"reelsub/internal/queue"
)

func (m *Manager) notifyCompleted(ctx context.Context, job *queue.Job, result queue.Result) {
	m.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"kind":    string(job.Kind),
		"project": job.ProjectID,
		"url":     result.ArtifactURL,
	})
}

func (m *Manager) notifyFailed(ctx context.Context, job *queue.Job, jobErr error) {
	m.publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"kind":    string(job.Kind),
		"project": job.ProjectID,
		"error":   jobErr,
	})
}

// jobStarted marks a worker busy and announces the queue becoming active.
func (m *Manager) jobStarted(ctx context.Context, job *queue.Job) {
	m.mu.Lock()
	m.busyWorkers++
	if job != nil {
		copy := *job
		m.lastJob = &copy
	}
	starting := !m.queueActive
	if starting {
		m.queueActive = true
		m.queueStart = time.Now()
	}
	m.mu.Unlock()

	if starting {
		m.publish(ctx, notifications.EventQueueStarted, nil)
	}
}

// jobFinished marks a worker idle and announces the queue draining once no
// worker is busy and nothing is left to run.
func (m *Manager) jobFinished(ctx context.Context) {
	m.mu.Lock()
	m.busyWorkers--
	idle := m.busyWorkers == 0 && m.queueActive
	m.mu.Unlock()
	if !idle {
		return
	}

	stats, err := m.store.Stats(context.WithoutCancel(ctx))
	if err != nil {
		m.logger.Debug("queue stats unavailable for completion check", logging.Error(err))
		return
	}
	if stats[queue.StateQueued]+stats[queue.StateRunning] > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive || m.busyWorkers > 0 {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	m.logger.Info("queue drained",
		logging.Int("completed", stats[queue.StateCompleted]),
		logging.Int("failed", stats[queue.StateFailed]),
		logging.Duration("active_duration", time.Since(start)))
	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": stats[queue.StateCompleted],
		"failed":    stats[queue.StateFailed],
		"duration":  time.Since(start),
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("notification cancelled", logging.String("event", string(event)))
			return
		}
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push notification for this event"),
			logging.Error(err))
	}
}
