// Package logging assembles structured slog loggers and formatting helpers used
// across reelsub services.
//
// It owns the console and JSON handlers, the JSON log file tee, and the
// in-memory StreamHub behind the HTTP log feed. Context helpers tag records
// with job, project, and correlation identifiers so worker and API logs line
// up. NewNop serves tests and wiring code that cannot fail.
package logging
