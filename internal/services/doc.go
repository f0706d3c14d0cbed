// Package services defines shared utilities consumed by the lifecycle
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (generation, synthesis, missing assets, compilation, execution,
//     cancellation) so a failed project records what went wrong and which
//     action recovers it.
//
// Subpackages hold the HTTP clients for the language model and the
// text-to-speech provider.
package services
