// Package workspace inspects and tidies the per-project working directories
// under the projects directory.
//
// Every project owns a project-<id> directory holding its voiceover and
// rendered video. Deleting a project removes its directory, but a crash or a
// manual database edit can leave directories without a row, and a killed
// ffmpeg can leave a partial output behind. The helpers here find and remove
// both. Callers are expected to hold the workspace lock exclusively so no
// render is writing while they run.
package workspace
