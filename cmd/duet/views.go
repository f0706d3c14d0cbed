package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"duet/internal/pipeline"
	"duet/internal/project"
	"duet/internal/scene"
)

// errRejected marks a lifecycle action refused by a state guard.
var errRejected = errors.New("action rejected")

type projectView struct {
	ID                    int64              `json:"id"`
	Topic                 string             `json:"topic"`
	Style                 string             `json:"style"`
	Status                string             `json:"status"`
	QuestionerRef         string             `json:"questioner_ref"`
	ExplainerRef          string             `json:"explainer_ref"`
	BackgroundRef         string             `json:"background_ref,omitempty"`
	MusicRef              string             `json:"music_ref,omitempty"`
	TargetDurationSeconds int                `json:"target_duration_seconds"`
	Lines                 int                `json:"lines"`
	Script                *scene.Script      `json:"script,omitempty"`
	Scenes                []scene.VideoScene `json:"scenes,omitempty"`
	VoiceoverPath         string             `json:"voiceover_path,omitempty"`
	OutputPath            string             `json:"output_path,omitempty"`
	DurationSeconds       *float64           `json:"duration_seconds,omitempty"`
	ErrorKind             string             `json:"error_kind,omitempty"`
	ErrorMessage          string             `json:"error_message,omitempty"`
	ReviewedBy            string             `json:"reviewed_by,omitempty"`
	ReviewNotes           string             `json:"review_notes,omitempty"`
	ReviewedAt            *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

func newProjectView(p *project.Project, detailed bool) projectView {
	view := projectView{
		ID:                    p.ID,
		Topic:                 p.Topic,
		Style:                 p.Style,
		Status:                string(p.Status),
		QuestionerRef:         p.QuestionerRef,
		ExplainerRef:          p.ExplainerRef,
		BackgroundRef:         p.BackgroundRef,
		MusicRef:              p.MusicRef,
		TargetDurationSeconds: p.TargetDurationSeconds,
		Lines:                 p.LineCount(),
		VoiceoverPath:         p.VoiceoverPath,
		OutputPath:            p.OutputPath,
		DurationSeconds:       p.DurationSeconds,
		ErrorKind:             p.ErrorKind,
		ErrorMessage:          p.ErrorMessage,
		ReviewedBy:            p.ReviewedBy,
		ReviewNotes:           p.ReviewNotes,
		ReviewedAt:            p.ReviewedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	if detailed {
		view.Script = p.Script
		view.Scenes = p.Scenes
	}
	return view
}

// reportOutcome prints the result of a lifecycle action. Rejections and
// failures become errors so the process exits non-zero.
func reportOutcome(cmd *cobra.Command, action string, out pipeline.Outcome, asJSON bool) error {
	if asJSON && out.Project != nil {
		if err := writeJSON(cmd, newProjectView(out.Project, false)); err != nil {
			return err
		}
	}
	switch {
	case !out.Applied:
		return fmt.Errorf("%w: %s: %s", errRejected, action, out.Reason)
	case out.Failed():
		return fmt.Errorf("project %d failed: %s", out.Project.ID, out.Project.ErrorMessage)
	}
	if !asJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "Project %d is now %s\n", out.Project.ID, out.Project.Status.Label())
	}
	return nil
}

func projectRows(projects []*project.Project) [][]string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.ID),
			truncateCell(p.Topic),
			p.Style,
			p.Status.Label(),
			fmt.Sprintf("%d", p.LineCount()),
			formatSeconds(p.DurationSeconds),
			humanize.Time(p.UpdatedAt),
		})
	}
	return rows
}

func printProject(w io.Writer, p *project.Project, colorize bool) {
	fmt.Fprintf(w, "Project %d: %s\n", p.ID, p.Topic)
	fmt.Fprintln(w, renderStatusLine("Status", projectTone(p.Status), p.Status.Label(), colorize))
	fmt.Fprintln(w, renderStatusLine("Style", toneInfo, p.Style, colorize))
	fmt.Fprintln(w, renderStatusLine("Characters", toneInfo, p.QuestionerRef+" / "+p.ExplainerRef, colorize))
	if p.BackgroundRef != "" {
		fmt.Fprintln(w, renderStatusLine("Background", toneInfo, p.BackgroundRef, colorize))
	}
	if p.MusicRef != "" {
		fmt.Fprintln(w, renderStatusLine("Music", toneInfo, p.MusicRef, colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Target", toneInfo, fmt.Sprintf("%ds", p.TargetDurationSeconds), colorize))
	if p.ReviewedBy != "" || p.ReviewNotes != "" {
		fmt.Fprintln(w, renderStatusLine("Review", toneInfo, strings.TrimSpace(p.ReviewedBy+" "+p.ReviewNotes), colorize))
	}
	if p.OutputPath != "" {
		fmt.Fprintln(w, renderStatusLine("Output", toneOK, fmt.Sprintf("%s (%s)", p.OutputPath, formatSeconds(p.DurationSeconds)), colorize))
	}
	if p.ErrorMessage != "" {
		fmt.Fprintln(w, renderStatusLine("Error", toneError, fmt.Sprintf("%s: %s", p.ErrorKind, p.ErrorMessage), colorize))
	}

	if len(p.Scenes) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, 0, len(p.Scenes))
		for _, sc := range p.Scenes {
			rows = append(rows, []string{
				fmt.Sprintf("%d", sc.Number),
				sc.SpeakerName,
				formatSeconds(sc.StartSeconds),
				formatSeconds(sc.DurationSeconds),
				truncateCell(sc.Text),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Speaker", "Start", "Duration", "Text"},
			rows,
			0, 2, 3,
		))
		return
	}
	if !p.Script.Empty() {
		fmt.Fprintln(w)
		for i, line := range p.Script.Lines {
			fmt.Fprintf(w, "%3d. %s: %s\n", i+1, line.SpeakerName, line.Text)
		}
		if p.Script.Takeaway != nil {
			fmt.Fprintf(w, "\nTakeaway: %s\n", *p.Script.Takeaway)
		}
	}
}

func formatSeconds(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *value)
}
