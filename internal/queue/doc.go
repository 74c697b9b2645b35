// Package queue persists transcription and export jobs in SQLite and hands
// them to workers.
//
// A job moves queued -> running -> completed|failed, returning to queued when
// the retry policy schedules another attempt. Claim is a single
// UPDATE ... RETURNING statement so two workers can never hold the same job.
// Enqueue refuses a job while another queued or running job exists for the
// same project.
package queue
