// Package daemonrun runs the reelsub daemon in the foreground: it builds the
// logger and service context, starts the daemon, writes a pid file, and waits
// for a termination signal. Both reelsubd and "reelsub serve" call Run.
package daemonrun
