package project

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"duet/internal/scene"
)

// Status represents the lifecycle of a video project.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusApproved   Status = "APPROVED"
	StatusAudioReady Status = "AUDIO_READY"
	StatusRendering  Status = "RENDERING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// InterruptedReason is the error message stored on renders abandoned by a
// previous process.
const InterruptedReason = "render interrupted before completion (run retry-render to recover)"

var allStatuses = []Status{
	StatusDraft,
	StatusApproved,
	StatusAudioReady,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ErrIllegalTransition reports a status change outside the transition table.
var ErrIllegalTransition = errors.New("status transition not permitted")

// transitions lists every permitted status change. Regeneration and
// rejection keep a project in DRAFT.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusDraft, StatusApproved, StatusFailed},
	StatusApproved:   {StatusDraft, StatusAudioReady, StatusFailed},
	StatusAudioReady: {StatusRendering},
	StatusRendering:  {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusDraft, StatusAudioReady},
	StatusCompleted:  nil,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status, ignoring case.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	normalized = Status(strings.ReplaceAll(string(normalized), "-", "_"))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Label renders the status for humans, e.g. "Audio Ready".
func (s Status) Label() string {
	words := strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
	return cases.Title(language.English).String(words)
}

// Terminal reports whether no further work happens without user action.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Project is a video project persisted in SQLite.
type Project struct {
	ID                    int64
	Topic                 string
	Style                 string
	QuestionerRef         string
	ExplainerRef          string
	BackgroundRef         string
	MusicRef              string
	TargetDurationSeconds int
	DocumentContext       string
	Status                Status
	Script                *scene.Script
	Scenes                []scene.VideoScene
	VoiceoverPath         string
	OutputPath            string
	ErrorMessage          string
	ErrorKind             string
	DurationSeconds       *float64
	ReviewNotes           string
	ReviewedBy            string
	ReviewedAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SetFailed marks the project failed with a classified message.
func (p *Project) SetFailed(kind, message string) {
	if p == nil {
		return
	}
	p.Status = StatusFailed
	p.ErrorKind = strings.TrimSpace(kind)
	p.ErrorMessage = strings.TrimSpace(message)
	if p.ErrorMessage == "" {
		p.ErrorMessage = "unknown failure"
	}
}

// ClearFailure removes any recorded failure.
func (p *Project) ClearFailure() {
	p.ErrorKind = ""
	p.ErrorMessage = ""
}

// LineCount returns the number of lines in the current script.
func (p *Project) LineCount() int {
	if p.Script == nil {
		return 0
	}
	return len(p.Script.Lines)
}

// CanRetryRender reports whether a failed project has the voiceover and
// scenes a render needs.
func (p *Project) CanRetryRender() bool {
	return p.Status == StatusFailed && p.VoiceoverPath != "" && len(p.Scenes) > 0 && len(p.Scenes) == p.LineCount()
}

// Validate checks the data invariants that hold in every status.
func (p *Project) Validate() error {
	if p == nil {
		return errors.New("project is nil")
	}
	if _, ok := statusSet[p.Status]; !ok {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	switch p.Status {
	case StatusDraft, StatusApproved:
		if len(p.Scenes) > 0 {
			return fmt.Errorf("%s project must not carry scenes", p.Status)
		}
	case StatusCompleted:
		if p.OutputPath == "" {
			return errors.New("completed project has no output path")
		}
	case StatusFailed:
		if p.ErrorMessage == "" {
			return errors.New("failed project has no error message")
		}
	}
	if len(p.Scenes) > 0 && len(p.Scenes) != p.LineCount() {
		return fmt.Errorf("project has %d scenes for %d script lines", len(p.Scenes), p.LineCount())
	}
	return nil
}

// ListOptions filters and pages List results.
type ListOptions struct {
	Statuses []Status
	Limit    int
	Offset   int
}
