// Package tts provides an ElevenLabs-compatible text-to-speech client.
//
// Client.Synthesize converts one line of text into MP3 audio with a given
// voice; Client.ListVoices enumerates the voices an account can use. Requests
// are retried on HTTP 429/5xx with exponential backoff, honouring
// Retry-After, and abort as soon as the context is cancelled.
package tts
