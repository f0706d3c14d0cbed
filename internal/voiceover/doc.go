// Package voiceover is the voiceover adapter. It voices every dialogue line
// through a text-to-speech provider, measures each segment with ffprobe, and
// concatenates the segments into combined_voiceover.mp3.
//
// Lines are synthesized concurrently up to a configured limit but segments
// are always returned in script order, one per line, with cumulative start
// times. Any failure wraps services.ErrSynthesis; cancellation returns the
// context error unchanged.
package voiceover
