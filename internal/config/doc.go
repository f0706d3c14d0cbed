// Package config loads, normalizes, and validates duet configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and ELEVENLABS_API_KEY. The Config type centralizes the
// canvas geometry, encoding parameters, and external service credentials the
// CLI and lifecycle pipeline need.
package config
