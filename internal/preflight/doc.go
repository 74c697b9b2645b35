// Package preflight provides readiness checks for the directories, binaries,
// and transcription provider that reelsub depends on.
//
// The daemon runs RunAll and CheckSystemDeps at startup and refuses to start
// workers when a directory is unusable. The CLI "reelsub status" command also
// calls CheckTranscriptionAPI to show whether the provider accepts the key.
package preflight
