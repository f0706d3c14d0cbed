// Package render is the command executor. It runs a compiled
// filtergraph.Command through ffmpeg and reports the finished file.
//
// Output is written to a sibling ".partial" file and renamed into place only
// after ffmpeg exits cleanly, so a failed or cancelled render never leaves a
// truncated video at the output path. A flock on "<output>.lock" keeps two
// processes from rendering the same project at once. The lock file itself is
// never removed.
package render
