// Package pipeline drives a video project through its lifecycle.
//
// A Manager owns the transition rules: it loads a project from the store,
// checks the guard for the requested action, calls the injected adapter
// (script writer, voiceover synthesizer, asset resolver, render executor),
// and persists the resulting state. Guard failures come back as an Outcome
// with Applied set to false rather than as errors. Adapter failures are
// recorded on the project as FAILED with a message naming the recovery
// action, so callers only see errors for storage problems, bad input, and
// cancellation of non-render steps.
//
// Transitions for one project are serialized with a per-project mutex that
// is only ever acquired with TryLock, so a second request while the first is
// still running is rejected instead of queued.
package pipeline
