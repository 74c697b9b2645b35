// Command reelsub is the operator CLI for the caption pipeline.
//
// Catalog and queue commands open the SQLite database directly, so they work
// whether or not the daemon is running; enqueued jobs are picked up by the
// daemon's workers. Daemon commands (serve, start, stop, status) manage the
// background process that runs workers, the cleanup sweeper, and the HTTP
// API.
package main
