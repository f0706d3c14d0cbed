// Package main hosts the duet CLI entrypoint and command graph.
//
// Each command resolves configuration, opens the project store, and drives
// one lifecycle action on the pipeline manager: creating a project, reviewing
// its script, synthesizing the voiceover, and rendering the final video.
// Supporting commands manage the asset library, check the environment, and
// scaffold configuration.
//
// Keep this package lean: add new behavior to the internal packages first and
// surface it here through a dedicated command or flag.
package main
