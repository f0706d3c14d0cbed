// Package preflight provides readiness checks for the binaries, directories,
// host resources, and remote APIs duet depends on.
//
// The CLI "duet doctor" command runs RunAll and prints every result. The
// render command runs the local checks (SkipRemote) so a missing ffmpeg is
// reported before a project is claimed for rendering.
package preflight
