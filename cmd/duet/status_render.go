package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"duet/internal/preflight"
	"duet/internal/project"
)

// tone is the bracketed tag and colour of a status line.
type tone struct {
	tag   string
	color string
}

var (
	toneInfo  = tone{tag: "INFO", color: "\x1b[34m"}
	toneOK    = tone{tag: "OK", color: "\x1b[32m"}
	toneWarn  = tone{tag: "WARN", color: "\x1b[33m"}
	toneError = tone{tag: "ERROR", color: "\x1b[31m"}
)

const ansiReset = "\x1b[0m"

func (t tone) paint(s string, colorize bool) string {
	if !colorize {
		return s
	}
	return t.color + s + ansiReset
}

// renderStatusLine formats "  Label:   [TAG] message" with the label padded
// to a fixed column.
func renderStatusLine(label string, t tone, message string, colorize bool) string {
	tag := "[" + t.tag + "]"
	if message != "" {
		tag += " " + message
	}
	return t.paint(fmt.Sprintf("  %-20s %s", label+":", tag), colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	return []string{
		toneInfo.paint(line, colorize),
		toneInfo.paint(strings.Repeat("-", len(line)), colorize),
	}
}

func checkTone(r preflight.Result) tone {
	switch {
	case r.Passed:
		return toneOK
	case r.Warning:
		return toneWarn
	default:
		return toneError
	}
}

// projectTone colours a status by how much attention the project needs.
func projectTone(s project.Status) tone {
	switch s {
	case project.StatusCompleted:
		return toneOK
	case project.StatusFailed:
		return toneError
	case project.StatusDraft, project.StatusAudioReady:
		return toneWarn
	default:
		return toneInfo
	}
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
