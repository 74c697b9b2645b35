package queue

import (
	"context"
	"fmt"
	"time"

	"reelsub/internal/database"
)

// The update methods below act on a job returned by Claim. They match on the
// claim token as well as the running state, so a worker whose claim was
// reclaimed and handed to another worker gets ErrNotRunning.

// Complete records a successful attempt.
func (s *Store) Complete(ctx context.Context, job *Job, result Result) error {
	payload, err := encodeResult(&result)
	if err != nil {
		return err
	}
	now := database.FormatTime(s.now())
	return s.finish(ctx, "complete", job,
		`UPDATE jobs SET state = ?, result_json = ?, error_message = NULL, error_kind = NULL,
			last_heartbeat = NULL, claim_token = NULL, updated_at = ?`,
		string(StateCompleted), payload, now)
}

// Fail records a terminal failure.
func (s *Store) Fail(ctx context.Context, job *Job, result Result, errorKind string) error {
	payload, err := encodeResult(&result)
	if err != nil {
		return err
	}
	now := database.FormatTime(s.now())
	return s.finish(ctx, "fail", job,
		`UPDATE jobs SET state = ?, result_json = ?, error_message = ?, error_kind = ?,
			last_heartbeat = NULL, claim_token = NULL, updated_at = ?`,
		string(StateFailed), payload, database.NullableString(result.Error), database.NullableString(errorKind), now)
}

// RetryRequest describes a scheduled retry.
type RetryRequest struct {
	Delay          time.Duration
	ErrorMessage   string
	ErrorKind      string
	StorageFailure bool
}

// ScheduleRetry returns a running job to the queue, bumping its attempt
// count and delaying it by req.Delay.
func (s *Store) ScheduleRetry(ctx context.Context, job *Job, req RetryRequest) error {
	now := s.now()
	storageIncrement := 0
	if req.StorageFailure {
		storageIncrement = 1
	}
	return s.finish(ctx, "retry", job,
		`UPDATE jobs SET state = ?, attempt = attempt + 1, storage_failures = storage_failures + ?,
			not_before = ?, last_delay_seconds = ?, error_message = ?, error_kind = ?,
			last_heartbeat = NULL, claim_token = NULL, updated_at = ?`,
		string(StateQueued), storageIncrement,
		database.FormatTime(now.Add(req.Delay)), int64(req.Delay/time.Second),
		database.NullableString(req.ErrorMessage), database.NullableString(req.ErrorKind),
		database.FormatTime(now))
}

// Release hands a running job back to the queue without consuming an
// attempt. Workers call it when shutdown interrupts a job.
func (s *Store) Release(ctx context.Context, job *Job) error {
	now := database.FormatTime(s.now())
	return s.finish(ctx, "release", job,
		`UPDATE jobs SET state = ?, not_before = ?, last_heartbeat = NULL, claim_token = NULL, updated_at = ?`,
		string(StateQueued), now, now)
}

// UpdateHeartbeat refreshes the liveness timestamp for a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, job *Job) error {
	now := database.FormatTime(s.now())
	return s.finish(ctx, "heartbeat", job,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ?`,
		now, now)
}

// finish appends the claim fence to update and runs it.
func (s *Store) finish(ctx context.Context, operation string, job *Job, update string, args ...any) error {
	if job == nil {
		return fmt.Errorf("%s job: %w", operation, ErrNotRunning)
	}
	query := update + ` WHERE id = ? AND state = ? AND claim_token = ?`
	args = append(args, job.ID, string(StateRunning), job.ClaimToken)
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return database.StorageError("queue", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return database.StorageError("queue", operation, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s job %s: %w", operation, job.ID, ErrNotRunning)
	}
	return nil
}
