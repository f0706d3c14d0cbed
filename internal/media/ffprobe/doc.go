// Package ffprobe reads durations and frame sizes from media files with
// ffprobe.
package ffprobe
