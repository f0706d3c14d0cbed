package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotConfigured marks a binary whose command is blank in the config.
var ErrNotConfigured = errors.New("command not configured")

var lookPath = exec.LookPath

// Binary is an external program duet shells out to.
type Binary struct {
	Name    string
	Command string
	Purpose string
}

// Lookup is the outcome of resolving a Binary on PATH.
type Lookup struct {
	Binary
	Path string
	Err  error
}

// OK reports whether the binary resolved.
func (l Lookup) OK() bool { return l.Err == nil }

// Locate resolves each binary, keeping the order given.
func Locate(bins ...Binary) []Lookup {
	out := make([]Lookup, len(bins))
	for i, bin := range bins {
		bin.Command = strings.TrimSpace(bin.Command)
		out[i] = Lookup{Binary: bin}
		if bin.Command == "" {
			out[i].Err = ErrNotConfigured
			continue
		}
		path, err := lookPath(bin.Command)
		if err != nil {
			out[i].Err = fmt.Errorf("%q not found: %w", bin.Command, err)
			continue
		}
		out[i].Path = path
	}
	return out
}
