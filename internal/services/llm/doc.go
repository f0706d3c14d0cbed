// Package llm provides an OpenRouter-compatible chat client used to write
// dialogue scripts and suggest topics.
//
// Client.Complete sends a system and user prompt in JSON mode and returns
// the model's content; Client.HealthCheck verifies the key and model with a
// one-line exchange. DecodeJSON turns that content into Go values while
// tolerating code fences and prose around the JSON body.
//
// Requests are retried through retry.Policy on HTTP 408/429/5xx, empty
// completions, and network timeouts (five attempts, 1s to 10s backoff by
// default).
package llm
