// Package filtergraph compiles timed dialogue scenes into an ffmpeg
// composition command.
//
// Compile is pure: it takes scenes, resolved asset paths, and the canvas the
// Compiler was built with, and returns a typed Command. The command is turned
// into argv only at the execution boundary through Command.Args.
//
// Graph shape:
//
//	[0:v] scale+pad                -> [bg]
//	[k:v] scale,format(,split)     -> [p<k>_<n>]   one per distinct pose image
//	[bg][p..] overlay              -> [idle<r>]    neutral pose per role, chained
//	[idle..][p..] overlay,drawtext -> [v0]         one per scene, chained
//	...                            -> [outv]       last scene, or null when empty
//	[1:a][m:a] amix                -> [outa]       only when music is present
package filtergraph
