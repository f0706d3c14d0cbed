// Package notifications delivers project events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. The
// event set covers the moments a person needs to act: a script waiting for
// review, a finished video, and a failed project.
//
// Pipeline code depends only on the Service interface.
package notifications
