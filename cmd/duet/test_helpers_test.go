package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"duet/internal/assets"
	"duet/internal/config"
	"duet/internal/filtergraph"
	"duet/internal/logging"
	"duet/internal/pipeline"
	"duet/internal/preflight"
	"duet/internal/project"
	"duet/internal/render"
	"duet/internal/scene"
	"duet/internal/testsupport"
)

type stubScript struct {
	mu  sync.Mutex
	err error
}

func (s *stubScript) Generate(_ context.Context, req scene.ScriptRequest) (scene.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return scene.Script{}, s.err
	}
	return scene.Script{
		Lines: []scene.DialogueLine{
			{Role: scene.RoleQuestioner, SpeakerName: req.QuestionerName, Text: "Why is the sky blue?"},
			{Role: scene.RoleExplainer, SpeakerName: req.ExplainerName, Text: "Sunlight scatters off air molecules."},
		},
		TargetDurationSeconds: req.TargetDurationSeconds,
	}, nil
}

type stubVoice struct{}

func (stubVoice) Synthesize(_ context.Context, req scene.VoiceoverRequest) (scene.Voiceover, error) {
	vo := scene.Voiceover{Path: filepath.Join(req.OutputDir, "combined_voiceover.mp3")}
	for i := range req.Script.Lines {
		vo.Segments = append(vo.Segments, scene.Segment{
			Path:            filepath.Join(req.OutputDir, "segment.mp3"),
			StartSeconds:    float64(i) * 1.5,
			DurationSeconds: 1.5,
		})
		vo.TotalSeconds += 1.5
	}
	return vo, nil
}

type stubExecutor struct {
	mu  sync.Mutex
	err error
}

func (s *stubExecutor) Run(_ context.Context, cmd *filtergraph.Command, outputPath string) (render.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return render.Result{}, s.err
	}
	return render.Result{OutputPath: outputPath, DurationSeconds: cmd.DurationSeconds}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	script     *stubScript
	executor   *stubExecutor
	preflight  []preflight.Result
}

// setupCLITestEnv writes a config file with a small asset library and
// swaps the production adapters for stubs. Options adjust the config before
// it is written.
func setupCLITestEnv(t *testing.T, opts ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"DUET_LLM_API_KEY", "OPENROUTER_API_KEY", "ELEVENLABS_API_KEY"} {
		t.Setenv(key, "")
	}
	cfg := testsupport.NewConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}
	testsupport.WriteCharacter(t, cfg.Paths.AssetsDir, "thabo", "neutral")
	testsupport.WriteCharacter(t, cfg.Paths.AssetsDir, "lerato", "neutral")
	testsupport.WriteBackground(t, cfg.Paths.AssetsDir, "classroom.png")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		script:     &stubScript{},
		executor:   &stubExecutor{},
		preflight:  []preflight.Result{{Name: "FFmpeg", Passed: true}},
	}

	origLogger, origManager, origPreflight := newLogger, newManager, renderPreflight
	newLogger = func(*config.Config) (*slog.Logger, error) {
		return logging.NewNop(), nil
	}
	newManager = func(loaded *config.Config, store *project.Store, logger *slog.Logger) (*pipeline.Manager, error) {
		return pipeline.New(loaded, pipeline.Deps{
			Store:     store,
			Script:    env.script,
			Voiceover: stubVoice{},
			Assets:    assets.New(loaded.Paths.AssetsDir),
			Executor:  env.executor,
			Logger:    logger,
		})
	}
	renderPreflight = func(context.Context, *config.Config) []preflight.Result {
		return env.preflight
	}
	t.Cleanup(func() {
		newLogger, newManager, renderPreflight = origLogger, origManager, origPreflight
	})
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// mustRun runs the CLI and fails the test on error.
func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, e.configPath, args...)
	if err != nil {
		t.Fatalf("duet %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func (e *cliTestEnv) showJSON(t *testing.T, id string) projectView {
	t.Helper()
	var view projectView
	if err := json.Unmarshal([]byte(e.mustRun(t, "show", id, "--json")), &view); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	return view
}

// audioReady creates project 1 and carries it through approval and voiceover.
func (e *cliTestEnv) audioReady(t *testing.T) {
	t.Helper()
	e.mustRun(t, "create", "Why is the sky blue?", "--background", "classroom.png")
	e.mustRun(t, "approve", "1")
	e.mustRun(t, "voiceover", "1")
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
