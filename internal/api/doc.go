// Package api exposes the reelsub HTTP surface and the wire-format types it
// serves. Handlers translate internal catalog and queue models into
// transport-friendly DTOs so CLI clients and dashboards never couple to
// storage types.
//
// # Routes
//
//	GET  /api/status                          daemon and worker pool status
//	GET  /api/jobs                            jobs, filtered by ?state= and ?project=
//	GET  /api/jobs/{id}                       one job with its result
//	GET  /api/projects                        projects for ?owner=
//	POST /api/projects                        multipart upload (owner, file)
//	GET  /api/projects/{id}                   one project
//	POST /api/projects/{id}/transcribe        enqueue a transcription
//	POST /api/projects/{id}/regenerate        replace the subtitle
//	POST /api/projects/{id}/export            enqueue a caption burn-in
//	GET  /api/projects/{id}/subtitles         download as ?format=srt|json
//	PUT  /api/projects/{id}/subtitles         edit segment texts
//	GET  /api/logs                            recent log events
//	GET  /blobs/*                             signed artifact download
//
// # Errors
//
// Service errors map to HTTP statuses by classification: validation errors
// become 400, missing records 404, state conflicts and busy projects 409,
// and everything else 500. Error bodies are {"error": "...", "kind": "..."}.
//
// # Auth
//
// When paths.api_token is set every /api route requires a bearer token.
// Blob downloads authenticate with their signed token instead.
package api
