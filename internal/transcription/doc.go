// Package transcription turns a media file into timed caption segments using
// an OpenAI-compatible speech-to-text endpoint.
//
// The client makes exactly one request per call and never retries; it tags
// failures so the worker's retry policy can tell an unavailable provider
// (transient) from media the provider rejects (permanent). When audio
// extraction is enabled the video is first reduced to a compressed audio
// track with ffmpeg, keeping uploads under provider size limits.
package transcription
