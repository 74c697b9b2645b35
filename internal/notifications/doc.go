// Package notifications delivers job outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Workers publish
// events with a loose payload map; formatting lives here so every caller
// produces the same messages.
package notifications
