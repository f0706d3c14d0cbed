// Package scene holds the value types that flow through the render pipeline:
// dialogue scripts, the timed scenes derived from them, and the voiceover
// segments that supply their timings.
//
// Scripts round-trip through an editable YAML document so a reviewer can fix
// lines before approval.
package scene
