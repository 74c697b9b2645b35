package queue

import (
	"database/sql"
	"encoding/json"
	"time"

	"reelsub/internal/database"
)

const jobColumns = "id, kind, project_id, media_path, options_json, state, attempt, max_attempts, storage_failures, not_before, last_delay_seconds, result_json, error_message, error_kind, last_heartbeat, claim_token, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		kind            string
		projectID       string
		mediaPath       sql.NullString
		options         sql.NullString
		state           string
		attempt         int
		maxAttempts     int
		storageFailures int
		notBeforeRaw    string
		lastDelay       int64
		resultRaw       sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		heartbeatRaw    sql.NullString
		claimToken      sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&id,
		&kind,
		&projectID,
		&mediaPath,
		&options,
		&state,
		&attempt,
		&maxAttempts,
		&storageFailures,
		&notBeforeRaw,
		&lastDelay,
		&resultRaw,
		&errorMessage,
		&errorKind,
		&heartbeatRaw,
		&claimToken,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Kind:            Kind(kind),
		ProjectID:       projectID,
		MediaPath:       mediaPath.String,
		State:           State(state),
		Attempt:         attempt,
		MaxAttempts:     maxAttempts,
		StorageFailures: storageFailures,
		LastDelay:       time.Duration(lastDelay) * time.Second,
		ErrorMessage:    errorMessage.String,
		ErrorKind:       errorKind.String,
		ClaimToken:      claimToken.String,
	}
	if options.Valid && options.String != "" {
		job.Options = json.RawMessage(options.String)
	}
	if resultRaw.Valid && resultRaw.String != "" {
		var result Result
		if err := json.Unmarshal([]byte(resultRaw.String), &result); err == nil {
			job.Result = &result
		}
	}
	if t, err := database.ParseTime(notBeforeRaw); err == nil {
		job.NotBefore = t
	}
	if t, err := database.ParseTime(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := database.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	if heartbeatRaw.Valid {
		if t, err := database.ParseTime(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &t
		}
	}
	return job, nil
}
