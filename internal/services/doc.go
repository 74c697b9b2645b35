// Package services defines shared utilities consumed by the job pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, project IDs, job kinds, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Classify helpers that the
//     retry policy uses to separate transient failures from permanent ones.
//   - A CommandRunner abstraction that makes ffmpeg/ffprobe invocations
//     testable.
//
// Use these helpers when wiring new adapters so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
