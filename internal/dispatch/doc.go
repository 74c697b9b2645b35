// Package dispatch accepts work for projects and turns it into queued jobs.
//
// Every entry point validates synchronously, then asks the status tracker to
// move the project before the job is enqueued, so enqueueing is always the
// last step. A project that already has a queued or running job is refused
// rather than given a second one.
//
// Intake registers new uploads: it checks extension, size, sniffed MIME
// type, and probed duration before creating the project and storing its
// media in the blob store.
package dispatch
