// Package workflow runs queued jobs on a pool of workers.
//
// Each worker goroutine claims one job at a time from the shared queue and
// makes plain blocking calls into the executor registered for the job kind
// (transcription or export). An attempt runs under a hard wall-clock
// deadline; executors also check a soft deadline between steps so a slow
// attempt can stop before the hard limit cancels it.
//
// Executors return an error. The manager tags it as a retry.Outcome and the
// per-kind retry.Policy decides whether the job completes, is rescheduled
// with exponential backoff, or fails. Transcription jobs drive the project
// status through the status tracker; export jobs leave the project
// completed and only record the artifact.
//
// Heartbeats keep running jobs alive. Jobs whose heartbeat goes stale are
// returned to the queue without consuming an attempt.
package workflow
