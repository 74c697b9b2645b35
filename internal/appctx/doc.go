// Package appctx builds the service context shared by the daemon and CLI.
//
// Everything a request or job touches is constructed once in New and passed
// down explicitly: configuration, logger, database, catalog and queue stores,
// the status tracker, blob storage, media prober, transcription client,
// export renderer, and the dispatcher. Nothing in reelsub reaches for a
// package-level instance. Tests swap collaborators through Options.
package appctx
