// Package export burns captions into a copy of a project's video.
//
// Options carries the caller's style choices, merged onto defaults and
// checked with go-playground/validator. The Renderer stages everything in a
// temp_export_<uuid> workspace under the temp directory, runs ffmpeg with the
// subtitles filter, uploads the result to the blob store, and removes the
// workspace on every exit path.
package export
