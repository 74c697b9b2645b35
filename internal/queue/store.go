package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsub/internal/database"
)

// Store manages job persistence.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore binds a job store to an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock overrides the time source; tests use it to step past retry delays.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Enqueue persists a queued job. It fails with ErrProjectBusy when the
// project already has a queued or running job; the check and the insert are
// one statement.
func (s *Store) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, errors.New("enqueue: project id is required")
	}
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	if req.MaxAttempts < 0 {
		req.MaxAttempts = 0
	}
	id := uuid.NewString()
	now := database.FormatTime(s.now())
	var options any
	if len(req.Options) > 0 {
		options = string(req.Options)
	}

	res, err := s.db.Exec(ctx,
		`INSERT INTO jobs (id, kind, project_id, media_path, options_json, state, attempt, max_attempts,
			storage_failures, not_before, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM jobs WHERE project_id = ? AND state IN (?, ?))`,
		id, string(req.Kind), req.ProjectID, req.MediaPath, options, string(StateQueued), req.MaxAttempts,
		now, now, now,
		req.ProjectID, string(StateQueued), string(StateRunning),
	)
	if err != nil {
		return nil, database.StorageError("queue", "enqueue", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, database.StorageError("queue", "enqueue", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectBusy, req.ProjectID)
	}
	return s.Get(ctx, id)
}

// Claim atomically moves the oldest due queued job to running. It returns
// nil, nil when nothing is due. The returned job carries a fresh claim
// token; later updates for this attempt must present it.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	now := database.FormatTime(s.now())
	row := s.db.QueryRow(ctx,
		`UPDATE jobs SET state = ?, last_heartbeat = ?, claim_token = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs WHERE state = ? AND not_before <= ?
			ORDER BY not_before, created_at LIMIT 1
		) AND state = ?
		RETURNING `+jobColumns,
		string(StateRunning), now, uuid.NewString(), now,
		string(StateQueued), now,
		string(StateQueued),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.StorageError("queue", "claim", err)
	}
	return job, nil
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, database.StorageError("queue", "get", err)
	}
	return job, nil
}

// ActiveForProject returns the queued or running job for a project, or nil.
func (s *Store) ActiveForProject(ctx context.Context, projectID string) (*Job, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE project_id = ? AND state IN (?, ?) ORDER BY created_at LIMIT 1`,
		projectID, string(StateQueued), string(StateRunning))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.StorageError("queue", "active", err)
	}
	return job, nil
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var (
		clauses []string
		args    []any
	)
	if len(filter.States) > 0 {
		clauses = append(clauses, "state IN ("+database.Placeholders(len(filter.States))+")")
		for _, state := range filter.States {
			args = append(args, string(state))
		}
	}
	if filter.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, database.StorageError("queue", "list", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, database.StorageError("queue", "list", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func encodeResult(result *Result) (any, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return string(data), nil
}
