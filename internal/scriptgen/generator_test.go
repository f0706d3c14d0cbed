package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"duet/internal/config"
	"duet/internal/logging"
	"duet/internal/scene"
	"duet/internal/services"
	"duet/internal/services/llm"
)

type fakeCompleter struct {
	content string
	err     error
	got     llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.got = req
	return f.content, f.err
}

func skyRequest() scene.ScriptRequest {
	return scene.ScriptRequest{
		Topic:                 "Why is the sky blue?",
		Style:                 "educational",
		QuestionerName:        "Thabo",
		ExplainerName:         "Lerato",
		TargetDurationSeconds: 45,
	}
}

func TestGenerateParsesScript(t *testing.T) {
	fake := &fakeCompleter{content: "```json\n" + `{
  "lines": [
    {"speaker_role": "questioner", "speaker_name": "Thabo", "line": "Why is the sky blue?", "pose": "Thinking"},
    {"speaker_role": "Explainer", "line": "Sunlight scatters off air molecules."},
    {"speaker_role": "questioner", "speaker_name": "Thabo", "line": "   "}
  ],
  "takeaway": "Blue light scatters most."
}` + "\n```"}
	gen := New(fake, logging.NewNop())

	script, err := gen.Generate(context.Background(), skyRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(script.Lines) != 2 {
		t.Fatalf("expected blank line to be dropped, got %d lines", len(script.Lines))
	}
	if script.Lines[0].Pose != "thinking" {
		t.Fatalf("expected lowercased pose, got %q", script.Lines[0].Pose)
	}
	second := script.Lines[1]
	if second.Role != scene.RoleExplainer || second.SpeakerName != "Lerato" || second.Pose != "standing" {
		t.Fatalf("unexpected defaults on second line: %+v", second)
	}
	if script.Takeaway == nil || *script.Takeaway != "Blue light scatters most." {
		t.Fatalf("unexpected takeaway %v", script.Takeaway)
	}
	if script.TargetDurationSeconds != 45 {
		t.Fatalf("unexpected target %d", script.TargetDurationSeconds)
	}
	if fake.got.MaxTokens != 2000 || fake.got.Temperature == 0 {
		t.Fatalf("unexpected request parameters %+v", fake.got)
	}
	if !strings.Contains(fake.got.User, "approximately 15 exchanges") {
		t.Fatalf("prompt does not carry line estimate:\n%s", fake.got.User)
	}
}

func TestGenerateFailuresAreGenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCompleter
		req  scene.ScriptRequest
	}{
		{"empty topic", &fakeCompleter{}, scene.ScriptRequest{}},
		{"llm error", &fakeCompleter{err: errors.New("http 500")}, skyRequest()},
		{"not json", &fakeCompleter{content: "I cannot help with that."}, skyRequest()},
		{"no lines", &fakeCompleter{content: `{"lines": []}`}, skyRequest()},
		{"bad role", &fakeCompleter{content: `{"lines": [{"speaker_role": "narrator", "line": "Hi"}]}`}, skyRequest()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.fake, nil).Generate(context.Background(), tc.req)
			if !errors.Is(err, services.ErrGeneration) {
				t.Fatalf("expected ErrGeneration, got %v", err)
			}
			if services.RecoveryAction(err) != services.RecoverRegenerate {
				t.Fatalf("expected regenerate recovery, got %s", services.RecoveryAction(err))
			}
		})
	}
}

func TestGenerateReturnsContextErrorWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeCompleter{err: context.Canceled}
	_, err := New(fake, nil).Generate(ctx, skyRequest())
	if !errors.Is(err, context.Canceled) || errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected bare context.Canceled, got %v", err)
	}
}

func TestRenderScriptPromptTruncatesDocument(t *testing.T) {
	req := skyRequest()
	req.DocumentContext = strings.Repeat("é", MaxDocumentContext+500)
	prompt, err := renderScriptPrompt(req)
	if err != nil {
		t.Fatalf("renderScriptPrompt: %v", err)
	}
	if !strings.Contains(prompt, "SOURCE DOCUMENT:") {
		t.Fatal("expected source document section")
	}
	if got := strings.Count(prompt, "é"); got != MaxDocumentContext {
		t.Fatalf("expected %d document runes, got %d", MaxDocumentContext, got)
	}

	req.DocumentContext = ""
	prompt, err = renderScriptPrompt(req)
	if err != nil {
		t.Fatalf("renderScriptPrompt: %v", err)
	}
	if strings.Contains(prompt, "SOURCE DOCUMENT:") {
		t.Fatal("unexpected source document section without context")
	}
}

func TestLineCount(t *testing.T) {
	cases := map[int]int{45: 15, 60: 20, 3: 2, 0: 2}
	for target, want := range cases {
		if got := LineCount(target); got != want {
			t.Fatalf("LineCount(%d) = %d, want %d", target, got, want)
		}
	}
}

func TestExtractTopics(t *testing.T) {
	fake := &fakeCompleter{content: `{"topics": [
		{"title": "Compound interest", "description": "Money growing on money", "context_style": "Finance"},
		{"title": "", "description": "skipped"},
		{"title": "Habits", "description": "Small wins", "context_style": "lifestyle"},
		{"title": "Extra", "description": "over the limit", "context_style": "tech"}
	]}`}
	topics, err := New(fake, nil).ExtractTopics(context.Background(), "A long document.", 2)
	if err != nil {
		t.Fatalf("ExtractTopics: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].Style != "finance" || topics[1].Style != "educational" {
		t.Fatalf("unexpected styles %+v", topics)
	}
	if !strings.Contains(fake.got.User, "up to 2 distinct topics") {
		t.Fatalf("prompt does not carry topic limit:\n%s", fake.got.User)
	}
	if _, err := New(fake, nil).ExtractTopics(context.Background(), "  ", 2); !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected ErrGeneration for empty document, got %v", err)
	}
}

func TestNewFromConfigTalksToEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{
				"content": `{"lines":[{"speaker_role":"questioner","speaker_name":"Thabo","line":"Hi?"},{"speaker_role":"explainer","speaker_name":"Lerato","line":"Hello."}]}`,
			}}},
		})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.LLM.APIKey = "test"
	cfg.LLM.BaseURL = server.URL
	script, err := NewFromConfig(&cfg, nil).Generate(context.Background(), skyRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(script.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(script.Lines))
	}
}
