// Package daemonctl starts, stops, and queries a reelsub daemon from the CLI.
// Liveness comes from the daemon pid file; runtime details come from the
// daemon's HTTP status endpoint.
package daemonctl
