package staging

import (
	"context"
	"log/slog"
	"time"

	"reelsub/internal/config"
	"reelsub/internal/logging"
)

// Sweeper periodically removes stale temp artifacts. It touches only entries
// past their max age, so it runs alongside active workers.
type Sweeper struct {
	dir      string
	prefix   string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a sweeper from the cleanup configuration.
func NewSweeper(cfg *config.Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		dir:      cfg.Paths.TempDir,
		prefix:   cfg.Cleanup.Prefix,
		maxAge:   time.Duration(cfg.Cleanup.MaxAgeSeconds) * time.Second,
		interval: time.Duration(cfg.Cleanup.IntervalSeconds) * time.Second,
		logger:   logging.NewComponentLogger(logger, "sweeper"),
	}
}

// SweepOnce runs a single pass.
func (s *Sweeper) SweepOnce(ctx context.Context) CleanStaleResult {
	result := CleanStale(ctx, s.dir, s.prefix, s.maxAge, s.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		s.logger.Info("temp sweep finished",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)))
	}
	return result
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.SweepOnce(ctx)
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
