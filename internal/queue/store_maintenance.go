package queue

import (
	"context"
	"time"

	"reelsub/internal/database"
)

// ReclaimStale returns running jobs whose heartbeat is older than cutoff to
// the queue without consuming an attempt. A worker that died mid-job never
// reports an outcome, so the attempt is not counted against the job.
// Clearing the claim token fences off a worker that is only slow.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := database.FormatTime(s.now())
	res, err := s.db.Exec(ctx,
		`UPDATE jobs SET state = ?, not_before = ?, last_heartbeat = NULL, claim_token = NULL, updated_at = ?
		WHERE state = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		string(StateQueued), now, now, string(StateRunning), database.FormatTime(cutoff))
	if err != nil {
		return 0, database.StorageError("queue", "reclaim", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.Query(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, database.StorageError("queue", "stats", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[State(state)] = count
	}
	return stats, rows.Err()
}

// ClearFinished removes completed and failed jobs.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM jobs WHERE state IN (?, ?)`, string(StateCompleted), string(StateFailed))
	if err != nil {
		return 0, database.StorageError("queue", "clear", err)
	}
	return res.RowsAffected()
}
