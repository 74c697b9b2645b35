package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reelsub/internal/catalog"
	"reelsub/internal/config"
	"reelsub/internal/logging"
	"reelsub/internal/notifications"
	"reelsub/internal/queue"
	"reelsub/internal/retry"
	"reelsub/internal/status"
)

// Manager runs a pool of workers over the job queue.
type Manager struct {
	store     *queue.Store
	catalog   *catalog.Store
	tracker   statusRecorder
	executors map[queue.Kind]Executor
	policies  map[queue.Kind]retry.Policy
	notifier  notifications.Service
	logger    *slog.Logger
	heartbeat *HeartbeatMonitor

	workers         int
	pollInterval    time.Duration
	errorRetry      time.Duration
	reclaimInterval time.Duration
	hardLimit       time.Duration
	softLimit       time.Duration

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastJob     *queue.Job
	busyWorkers int
	queueActive bool
	queueStart  time.Time
}

// statusRecorder is the part of the status tracker the worker drives.
type statusRecorder interface {
	Complete(ctx context.Context, projectID string) error
	Fail(ctx context.Context, projectID string, cause error) error
}

// Dependencies bundles the collaborators a Manager drives.
type Dependencies struct {
	Queue      *queue.Store
	Catalog    *catalog.Store
	Tracker    *status.Tracker
	Transcribe Executor
	Export     Executor
	Notifier   notifications.Service
}

// NewManager constructs a manager from configuration.
func NewManager(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	executors := make(map[queue.Kind]Executor, 2)
	if deps.Transcribe != nil {
		executors[queue.KindTranscribe] = deps.Transcribe
	}
	if deps.Export != nil {
		executors[queue.KindExport] = deps.Export
	}
	heartbeatInterval := time.Duration(cfg.Workers.HeartbeatInterval) * time.Second
	heartbeatTimeout := time.Duration(cfg.Workers.HeartbeatTimeout) * time.Second
	return &Manager{
		store:           deps.Queue,
		catalog:         deps.Catalog,
		tracker:         deps.Tracker,
		executors:       executors,
		policies:        PoliciesFromConfig(cfg),
		notifier:        notifier,
		logger:          logger,
		heartbeat:       NewHeartbeatMonitor(deps.Queue, logger, heartbeatInterval, heartbeatTimeout),
		workers:         max(cfg.Workers.Count, 1),
		pollInterval:    time.Duration(cfg.Workers.PollInterval) * time.Second,
		errorRetry:      time.Duration(cfg.Workers.ErrorRetryInterval) * time.Second,
		reclaimInterval: heartbeatTimeout,
		hardLimit:       cfg.HardLimit(),
		softLimit:       cfg.SoftLimit(),
	}
}

// PoliciesFromConfig builds the retry policy for each job kind.
func PoliciesFromConfig(cfg *config.Config) map[queue.Kind]retry.Policy {
	return map[queue.Kind]retry.Policy{
		queue.KindTranscribe: {
			Base:           time.Duration(cfg.Retry.TranscribeBaseSeconds) * time.Second,
			MaxAttempts:    cfg.Retry.TranscribeMaxAttempts,
			StorageRetries: cfg.Retry.StorageMaxRetries,
		},
		queue.KindExport: {
			Base:           time.Duration(cfg.Retry.ExportBaseSeconds) * time.Second,
			MaxAttempts:    cfg.Retry.ExportMaxAttempts,
			StorageRetries: cfg.Retry.StorageMaxRetries,
		},
	}
}
