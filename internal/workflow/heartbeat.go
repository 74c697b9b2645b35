package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsub/internal/logging"
	"reelsub/internal/queue"
)

// HeartbeatMonitor manages job heartbeats and stale job reclamation.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale returns running jobs that stopped sending heartbeats to the
// queue.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int64, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
	}
	return reclaimed, nil
}

// StartLoop refreshes a job heartbeat until ctx is cancelled. When the queue
// no longer recognizes the claim it calls lost with the queue error and
// stops, so the worker abandons the attempt.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, job *queue.Job, lost context.CancelCauseFunc) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, job); err != nil {
				if errors.Is(err, queue.ErrNotRunning) {
					logging.WarnWithContext(logger, "job claim lost; abandoning attempt", "job_claim_lost",
						logging.String(logging.FieldErrorHint, "raise workers.heartbeat_timeout if jobs are reclaimed while alive"),
						logging.String(logging.FieldImpact, "another worker owns the job now"),
						logging.Error(err))
					if lost != nil {
						lost(err)
					}
					return
				}
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed",
						logging.Error(err),
						logging.String(logging.FieldEventType, "heartbeat_update_failed"),
						logging.String(logging.FieldErrorHint, "check queue database access"),
						logging.String(logging.FieldImpact, "job may be reclaimed and run twice"))
				}
			}
		}
	}
}
