// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: runs ffprobe through an injectable output runner
//
// Intake uses it to reject uploads that carry no video stream or exceed the
// configured duration limit before a project is created.
package ffprobe
