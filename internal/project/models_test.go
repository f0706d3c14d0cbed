package project_test

import (
	"testing"

	"duet/internal/project"
	"duet/internal/scene"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want project.Status
		ok   bool
	}{
		{"draft", project.StatusDraft, true},
		{" AUDIO_READY ", project.StatusAudioReady, true},
		{"audio-ready", project.StatusAudioReady, true},
		{"completed", project.StatusCompleted, true},
		{"queued", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := project.ParseStatus(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseStatus(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]project.Status]bool{
		{project.StatusDraft, project.StatusDraft}:          true,
		{project.StatusDraft, project.StatusApproved}:       true,
		{project.StatusDraft, project.StatusFailed}:         true,
		{project.StatusApproved, project.StatusDraft}:       true,
		{project.StatusApproved, project.StatusAudioReady}:  true,
		{project.StatusApproved, project.StatusFailed}:      true,
		{project.StatusAudioReady, project.StatusRendering}: true,
		{project.StatusRendering, project.StatusCompleted}:  true,
		{project.StatusRendering, project.StatusFailed}:     true,
		{project.StatusFailed, project.StatusDraft}:         true,
		{project.StatusFailed, project.StatusAudioReady}:    true,
	}
	for _, from := range project.AllStatuses() {
		for _, to := range project.AllStatuses() {
			want := allowed[[2]project.Status{from, to}]
			if got := project.CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if got := project.StatusAudioReady.Label(); got != "Audio Ready" {
		t.Fatalf("unexpected label %q", got)
	}
	if !project.StatusFailed.Terminal() || !project.StatusCompleted.Terminal() || project.StatusRendering.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestProjectValidate(t *testing.T) {
	script := &scene.Script{Lines: []scene.DialogueLine{
		{Role: scene.RoleQuestioner, SpeakerName: "Thabo", Text: "Why?"},
	}}
	scenes := scene.FromScript(*script)

	tests := []struct {
		name    string
		p       project.Project
		wantErr bool
	}{
		{"draft without scenes", project.Project{Status: project.StatusDraft, Script: script}, false},
		{"draft with scenes", project.Project{Status: project.StatusDraft, Script: script, Scenes: scenes}, true},
		{"completed without output", project.Project{Status: project.StatusCompleted, Script: script, Scenes: scenes}, true},
		{"completed with output", project.Project{Status: project.StatusCompleted, Script: script, Scenes: scenes, OutputPath: "/x.mp4"}, false},
		{"failed without message", project.Project{Status: project.StatusFailed}, true},
		{"scene count mismatch", project.Project{Status: project.StatusAudioReady, Script: &scene.Script{}, Scenes: scenes}, true},
		{"unknown status", project.Project{Status: "QUEUED"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSetFailedDefaultsMessage(t *testing.T) {
	p := &project.Project{Status: project.StatusRendering}
	p.SetFailed("execution", "  ")
	if p.Status != project.StatusFailed || p.ErrorMessage != "unknown failure" || p.ErrorKind != "execution" {
		t.Fatalf("unexpected failure state: %+v", p)
	}
	p.ClearFailure()
	if p.ErrorMessage != "" || p.ErrorKind != "" {
		t.Fatalf("failure not cleared: %+v", p)
	}
}
