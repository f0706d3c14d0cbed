package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"duet/internal/assets"
	"duet/internal/config"
	"duet/internal/filtergraph"
	"duet/internal/logging"
	"duet/internal/notifications"
	"duet/internal/pipeline"
	"duet/internal/project"
	"duet/internal/render"
	"duet/internal/scene"
	"duet/internal/services"
	"duet/internal/testsupport"
)

type fakeScript struct {
	mu       sync.Mutex
	err      error
	lines    []scene.DialogueLine
	requests []scene.ScriptRequest
	block    bool
}

func (f *fakeScript) Generate(ctx context.Context, req scene.ScriptRequest) (scene.Script, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err, lines, block := f.err, f.lines, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return scene.Script{}, ctx.Err()
	}
	if err != nil {
		return scene.Script{}, err
	}
	if lines == nil {
		lines = skyLines(req.QuestionerName, req.ExplainerName)
	}
	return scene.Script{Lines: lines, TargetDurationSeconds: req.TargetDurationSeconds}, nil
}

func (f *fakeScript) last() scene.ScriptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func skyLines(questioner, explainer string) []scene.DialogueLine {
	return []scene.DialogueLine{
		{Role: scene.RoleQuestioner, SpeakerName: questioner, Text: "Why is the sky blue?", Pose: "curious"},
		{Role: scene.RoleExplainer, SpeakerName: explainer, Text: "Sunlight scatters off air molecules.", Pose: "explaining"},
		{Role: scene.RoleQuestioner, SpeakerName: questioner, Text: "Why blue and not red?"},
		{Role: scene.RoleExplainer, SpeakerName: explainer, Text: "Shorter wavelengths scatter more."},
	}
}

type fakeVoice struct {
	mu       sync.Mutex
	err      error
	drop     int
	requests []scene.VoiceoverRequest
}

func (f *fakeVoice) Synthesize(_ context.Context, req scene.VoiceoverRequest) (scene.Voiceover, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return scene.Voiceover{}, f.err
	}
	vo := scene.Voiceover{Path: filepath.Join(req.OutputDir, "combined_voiceover.mp3")}
	start := 0.0
	for i := range req.Script.Lines[f.drop:] {
		duration := 2.0 + float64(i)
		vo.Segments = append(vo.Segments, scene.Segment{
			Path:            filepath.Join(req.OutputDir, "segment.mp3"),
			StartSeconds:    start,
			DurationSeconds: duration,
		})
		start += duration
	}
	vo.TotalSeconds = start
	return vo, nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	err      error
	started  chan struct{}
	release  chan struct{}
	waitCtx  bool
	commands []*filtergraph.Command
}

func (f *fakeExecutor) Run(ctx context.Context, cmd *filtergraph.Command, outputPath string) (render.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.waitCtx {
		<-ctx.Done()
		return render.Result{}, ctx.Err()
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return render.Result{}, f.err
	}
	return render.Result{OutputPath: outputPath, DurationSeconds: cmd.DurationSeconds, Width: 1080, Height: 1920}, nil
}

func (f *fakeExecutor) lastCommand() *filtergraph.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return nil
	}
	return f.commands[len(f.commands)-1]
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	events []notifications.Event
	last   map[notifications.Event]notifications.Payload
}

func (f *fakeNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	if f.last == nil {
		f.last = make(map[notifications.Event]notifications.Payload)
	}
	f.last[event] = payload
	return f.err
}

type harness struct {
	cfg      *config.Config
	store    *project.Store
	script   *fakeScript
	voice    *fakeVoice
	executor *fakeExecutor
	notifier *fakeNotifier
	manager  *pipeline.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteCharacter(t, cfg.Paths.AssetsDir, "thabo", "neutral", "curious")
	testsupport.WriteCharacter(t, cfg.Paths.AssetsDir, "lerato", "neutral", "explaining")
	testsupport.WriteBackground(t, cfg.Paths.AssetsDir, "classroom.png")

	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		script:   &fakeScript{},
		voice:    &fakeVoice{},
		executor: &fakeExecutor{},
		notifier: &fakeNotifier{},
	}
	manager, err := pipeline.New(cfg, pipeline.Deps{
		Store:     h.store,
		Script:    h.script,
		Voiceover: h.voice,
		Assets:    assets.New(cfg.Paths.AssetsDir),
		Executor:  h.executor,
		Notifier:  h.notifier,
		Logger:    logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.manager = manager
	return h
}

func (h *harness) create(t *testing.T, topic string) *project.Project {
	t.Helper()
	out, err := h.manager.Create(context.Background(), pipeline.CreateRequest{
		Topic:         topic,
		BackgroundRef: "classroom.png",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !out.Applied || out.Project.Status != project.StatusDraft {
		t.Fatalf("Create outcome = %+v, want applied DRAFT", out)
	}
	return out.Project
}

// audioReady drives a new project to AUDIO_READY.
func (h *harness) audioReady(t *testing.T, topic string) *project.Project {
	t.Helper()
	p := h.create(t, topic)
	if out, err := h.manager.Approve(context.Background(), p.ID, "editor"); err != nil || !out.Applied {
		t.Fatalf("Approve = %+v, %v", out, err)
	}
	out, err := h.manager.Synthesize(context.Background(), p.ID)
	if err != nil || !out.Applied || out.Project.Status != project.StatusAudioReady {
		t.Fatalf("Synthesize = %+v, %v", out, err)
	}
	return out.Project
}

func (h *harness) setStatus(t *testing.T, id int64, status project.Status) {
	t.Helper()
	p, err := h.store.Get(context.Background(), id)
	if err != nil || p == nil {
		t.Fatalf("Get(%d) = %v, %v", id, p, err)
	}
	p.Status = status
	if status == project.StatusFailed {
		p.SetFailed(services.KindExecution, "boom")
	}
	if status == project.StatusCompleted {
		p.OutputPath = "/tmp/out.mp4"
	}
	testsupport.Advance(t, h.store, p)
}

func TestSkyIsBlueScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.create(t, "Why is the sky blue?")
	req := h.script.last()
	if req.QuestionerName != "Thabo" || req.ExplainerName != "Lerato" {
		t.Fatalf("speaker names = %q/%q, want Thabo/Lerato", req.QuestionerName, req.ExplainerName)
	}
	if req.Style != "educational" || req.TargetDurationSeconds != 45 {
		t.Fatalf("request defaults = %+v", req)
	}
	if p.LineCount() != 4 || len(p.Scenes) != 0 {
		t.Fatalf("draft has %d lines and %d scenes", p.LineCount(), len(p.Scenes))
	}

	approved, err := h.manager.Approve(ctx, p.ID, "editor")
	if err != nil || !approved.Applied {
		t.Fatalf("Approve = %+v, %v", approved, err)
	}
	if approved.Project.ReviewedBy != "editor" || approved.Project.ReviewedAt == nil {
		t.Fatalf("review metadata not recorded: %+v", approved.Project)
	}

	voiced, err := h.manager.Synthesize(ctx, p.ID)
	if err != nil || !voiced.Applied {
		t.Fatalf("Synthesize = %+v, %v", voiced, err)
	}
	if got := voiced.Project.Status; got != project.StatusAudioReady {
		t.Fatalf("status after voiceover = %s", got)
	}
	if len(voiced.Project.Scenes) != 4 {
		t.Fatalf("scenes = %d, want 4", len(voiced.Project.Scenes))
	}
	for i, sc := range voiced.Project.Scenes {
		if !sc.Timed() {
			t.Fatalf("scene %d is untimed", i+1)
		}
		if sc.BackgroundRef == nil || *sc.BackgroundRef != "classroom.png" {
			t.Fatalf("scene %d background = %v", i+1, sc.BackgroundRef)
		}
	}
	wantDir := filepath.Join(h.cfg.ProjectDir(p.ID), "voiceover")
	if got := h.voice.requests[0].OutputDir; got != wantDir {
		t.Fatalf("voiceover dir = %q, want %q", got, wantDir)
	}
	if got := h.voice.requests[0].Voices.Questioner; got != h.cfg.Voiceover.QuestionerVoiceID {
		t.Fatalf("questioner voice = %q", got)
	}

	rendered, err := h.manager.Render(ctx, p.ID)
	if err != nil || !rendered.Applied {
		t.Fatalf("Render = %+v, %v", rendered, err)
	}
	done := rendered.Project
	if done.Status != project.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", done.Status)
	}
	if done.OutputPath != h.manager.OutputPath(p.ID) {
		t.Fatalf("output path = %q", done.OutputPath)
	}
	if done.DurationSeconds == nil || *done.DurationSeconds != 14 {
		t.Fatalf("duration = %v, want 14", done.DurationSeconds)
	}
	if done.ErrorMessage != "" {
		t.Fatalf("completed project carries error %q", done.ErrorMessage)
	}
	if err := done.Validate(); err != nil {
		t.Fatalf("completed project invalid: %v", err)
	}

	cmd := h.executor.lastCommand()
	overlays := cmd.StagesOf(filtergraph.StageOverlay)
	if len(overlays) != 4 {
		t.Fatalf("overlay stages = %d, want 4", len(overlays))
	}
	if got := overlays[len(overlays)-1].Outputs[0]; got != "outv" {
		t.Fatalf("final label = %q, want outv", got)
	}
	if len(cmd.StagesOf(filtergraph.StagePose)) == 0 {
		t.Fatal("expected pose stages for resolved characters")
	}

	stored, err := h.manager.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != project.StatusCompleted || len(stored.Scenes) != 4 {
		t.Fatalf("stored project = %s with %d scenes", stored.Status, len(stored.Scenes))
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  pipeline.CreateRequest
		want error
	}{
		{"empty topic", pipeline.CreateRequest{Topic: "  "}, services.ErrValidation},
		{"unknown style", pipeline.CreateRequest{Topic: "x", Style: "poetry"}, services.ErrValidation},
		{"negative duration", pipeline.CreateRequest{Topic: "x", TargetDurationSeconds: -1}, services.ErrValidation},
		{"missing character", pipeline.CreateRequest{Topic: "x", ExplainerRef: "ghost"}, services.ErrAssetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.manager.Create(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create error = %v, want %v", err, tt.want)
			}
		})
	}

	list, err := h.manager.List(context.Background(), project.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("invalid requests stored %d projects", len(list))
	}
}

func TestCreateGenerationFailureMarksFailed(t *testing.T) {
	h := newHarness(t)
	h.script.err = services.Wrap(services.ErrGeneration, "script", "complete", "llm unavailable", nil)

	out, err := h.manager.Create(context.Background(), pipeline.CreateRequest{Topic: "Tides"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !out.Failed() {
		t.Fatalf("status = %s, want FAILED", out.Project.Status)
	}
	if out.Project.ErrorKind != services.KindGeneration {
		t.Fatalf("error kind = %q", out.Project.ErrorKind)
	}
	if !strings.Contains(out.Project.ErrorMessage, "regenerate") {
		t.Fatalf("message %q does not name regenerate", out.Project.ErrorMessage)
	}

	h.script.err = nil
	again, err := h.manager.Regenerate(context.Background(), out.Project.ID)
	if err != nil || !again.Applied {
		t.Fatalf("Regenerate = %+v, %v", again, err)
	}
	if again.Project.Status != project.StatusDraft || again.Project.ErrorMessage != "" || again.Project.LineCount() != 4 {
		t.Fatalf("regenerated project = %+v", again.Project)
	}
}

func TestCreateCancelledLeavesDraft(t *testing.T) {
	h := newHarness(t)
	h.script.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	out, err := h.manager.Create(ctx, pipeline.CreateRequest{Topic: "Volcanoes"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Create error = %v, want context.Canceled", err)
	}
	stored, gerr := h.manager.Get(context.Background(), out.Project.ID)
	if gerr != nil {
		t.Fatalf("Get: %v", gerr)
	}
	if stored.Status != project.StatusDraft {
		t.Fatalf("status = %s, want DRAFT", stored.Status)
	}
}

func TestApproveOnlyFromDraft(t *testing.T) {
	for _, status := range project.AllStatuses() {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			p := h.create(t, "Magnets")
			if status != project.StatusDraft {
				h.setStatus(t, p.ID, status)
			}

			out, err := h.manager.Approve(context.Background(), p.ID, "editor")
			if err != nil {
				t.Fatalf("Approve: %v", err)
			}
			want := status == project.StatusDraft
			if out.Applied != want {
				t.Fatalf("Applied = %v, want %v (reason %q)", out.Applied, want, out.Reason)
			}
			stored, _ := h.manager.Get(context.Background(), p.ID)
			if !want && stored.Status != status {
				t.Fatalf("rejected approve changed status to %s", stored.Status)
			}
		})
	}
}

func TestApproveRejectsEmptyScript(t *testing.T) {
	h := newHarness(t)
	p := testsupport.NewProject(t, h.store, "Empty")

	out, err := h.manager.Approve(context.Background(), p.ID, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if out.Applied || !strings.Contains(out.Reason, "empty") {
		t.Fatalf("outcome = %+v, want rejection for empty script", out)
	}
}

func TestApproveUnknownProject(t *testing.T) {
	h := newHarness(t)
	if _, err := h.manager.Approve(context.Background(), 404, ""); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("Approve error = %v, want ErrNotFound", err)
	}
}

func TestRejectReturnsApprovedToDraft(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, "Rainbows")
	if _, err := h.manager.Approve(context.Background(), p.ID, "editor"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	out, err := h.manager.Reject(context.Background(), p.ID, "lead", "too long")
	if err != nil || !out.Applied {
		t.Fatalf("Reject = %+v, %v", out, err)
	}
	if out.Project.Status != project.StatusDraft || out.Project.ReviewNotes != "too long" || out.Project.ReviewedBy != "lead" {
		t.Fatalf("rejected project = %+v", out.Project)
	}
}

func TestUpdateScriptOnlyInDraft(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, "Clouds")
	edited := scene.Script{Lines: []scene.DialogueLine{
		{Role: scene.RoleQuestioner, SpeakerName: "Thabo", Text: "What are clouds?"},
		{Role: scene.RoleExplainer, SpeakerName: "Lerato", Text: "Water droplets."},
	}}

	out, err := h.manager.UpdateScript(context.Background(), p.ID, edited)
	if err != nil || !out.Applied {
		t.Fatalf("UpdateScript = %+v, %v", out, err)
	}
	if out.Project.LineCount() != 2 || out.Project.Script.TargetDurationSeconds != 45 {
		t.Fatalf("updated script = %+v", out.Project.Script)
	}

	if _, err := h.manager.UpdateScript(context.Background(), p.ID, scene.Script{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty script error = %v, want ErrValidation", err)
	}

	if _, err := h.manager.Approve(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	rejected, err := h.manager.UpdateScript(context.Background(), p.ID, edited)
	if err != nil || rejected.Applied {
		t.Fatalf("UpdateScript on approved = %+v, %v", rejected, err)
	}
}

func TestSynthesizeRequiresApproval(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, "Gravity")

	out, err := h.manager.Synthesize(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Applied {
		t.Fatal("voiceover ran before approval")
	}
	if len(h.voice.requests) != 0 {
		t.Fatal("voiceover adapter was called")
	}
}

func TestSynthesizeSegmentMismatchFails(t *testing.T) {
	h := newHarness(t)
	h.voice.drop = 1
	p := h.create(t, "Lightning")
	if _, err := h.manager.Approve(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	out, err := h.manager.Synthesize(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !out.Failed() {
		t.Fatalf("status = %s, want FAILED", out.Project.Status)
	}
	if !strings.Contains(out.Project.ErrorMessage, "3 segments for 4 scenes") {
		t.Fatalf("message = %q", out.Project.ErrorMessage)
	}
	if !strings.Contains(out.Project.ErrorMessage, "regenerate") {
		t.Fatalf("message %q does not name regenerate", out.Project.ErrorMessage)
	}
	if len(out.Project.Scenes) != 0 {
		t.Fatal("mismatched voiceover attached scenes")
	}
}

func TestSynthesizeFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.voice.err = services.Wrap(services.ErrSynthesis, "voiceover", "synthesize", "line 2", errors.New("quota exceeded"))
	p := h.create(t, "Earthquakes")
	if _, err := h.manager.Approve(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	out, err := h.manager.Synthesize(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !out.Failed() || out.Project.ErrorKind != services.KindSynthesis {
		t.Fatalf("outcome = %+v", out.Project)
	}
	retry, err := h.manager.RetryRender(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("RetryRender: %v", err)
	}
	if retry.Applied {
		t.Fatal("retry-render allowed without a voiceover")
	}
}

func TestVoiceFromCharacterManifest(t *testing.T) {
	h := newHarness(t)
	manifest := filepath.Join(h.cfg.Paths.AssetsDir, "characters", "lerato", "character.toml")
	if err := os.WriteFile(manifest, []byte("name = \"Lerato M\"\nvoice_id = \"custom-voice\"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	p := h.create(t, "Oceans")
	if got := h.script.last().ExplainerName; got != "Lerato M" {
		t.Fatalf("explainer name = %q", got)
	}
	if _, err := h.manager.Approve(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := h.manager.Synthesize(context.Background(), p.ID); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := h.voice.requests[0].Voices.Explainer; got != "custom-voice" {
		t.Fatalf("explainer voice = %q, want custom-voice", got)
	}
}

func TestSecondRenderIsRejected(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Stars")
	h.executor.started = make(chan struct{})
	h.executor.release = make(chan struct{})

	type result struct {
		out pipeline.Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := h.manager.Render(context.Background(), p.ID)
		first <- result{out, err}
	}()
	<-h.executor.started

	second, err := h.manager.Render(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if second.Applied {
		t.Fatal("second render was applied")
	}
	if !strings.Contains(second.Reason, "in progress") {
		t.Fatalf("reason = %q", second.Reason)
	}

	close(h.executor.release)
	res := <-first
	if res.err != nil || res.out.Project.Status != project.StatusCompleted {
		t.Fatalf("first render = %+v, %v", res.out, res.err)
	}
}

func TestRenderRejectsStoredRendering(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Comets")
	if ok, err := h.store.Transition(context.Background(), p.ID, project.StatusAudioReady, project.StatusRendering); err != nil || !ok {
		t.Fatalf("Transition = %v, %v", ok, err)
	}

	out, err := h.manager.Render(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Applied || h.executor.lastCommand() != nil {
		t.Fatalf("render of a RENDERING project ran: %+v", out)
	}
}

func TestCancelledRenderFails(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Planets")
	h.executor.started = make(chan struct{})
	h.executor.waitCtx = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.executor.started
		cancel()
	}()
	out, err := h.manager.Render(ctx, p.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !out.Failed() {
		t.Fatalf("status = %s, want FAILED", out.Project.Status)
	}
	if out.Project.ErrorKind != services.KindCancelled {
		t.Fatalf("error kind = %q, want cancelled", out.Project.ErrorKind)
	}
	stored, _ := h.manager.Get(context.Background(), p.ID)
	if stored.Status != project.StatusFailed || !strings.Contains(stored.ErrorMessage, "retry-render") {
		t.Fatalf("stored project = %s %q", stored.Status, stored.ErrorMessage)
	}
}

func TestRenderMissingBackgroundThenRetry(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Deserts")
	if err := os.Remove(filepath.Join(h.cfg.Paths.AssetsDir, "backgrounds", "classroom.png")); err != nil {
		t.Fatalf("remove background: %v", err)
	}

	out, err := h.manager.Render(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !out.Failed() || out.Project.ErrorKind != services.KindAssetNotFound {
		t.Fatalf("outcome = %s/%s", out.Project.Status, out.Project.ErrorKind)
	}
	if !strings.Contains(out.Project.ErrorMessage, "retry-render") {
		t.Fatalf("message %q does not name retry-render", out.Project.ErrorMessage)
	}
	if out.Project.OutputPath != "" {
		t.Fatal("failed project has an output path")
	}

	testsupport.WriteBackground(t, h.cfg.Paths.AssetsDir, "classroom.png")
	retry, err := h.manager.RetryRender(context.Background(), p.ID)
	if err != nil || !retry.Applied || retry.Project.Status != project.StatusAudioReady {
		t.Fatalf("RetryRender = %+v, %v", retry, err)
	}
	if retry.Project.ErrorMessage != "" {
		t.Fatal("retry kept the failure message")
	}
	done, err := h.manager.Render(context.Background(), p.ID)
	if err != nil || done.Project.Status != project.StatusCompleted {
		t.Fatalf("Render after retry = %+v, %v", done, err)
	}
}

func TestRenderExecutionFailure(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Glaciers")
	h.executor.err = services.Wrap(services.ErrExecution, "render", "ffmpeg", "exit status 1", nil)

	out, err := h.manager.Render(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !out.Failed() || out.Project.ErrorKind != services.KindExecution {
		t.Fatalf("outcome = %s/%s", out.Project.Status, out.Project.ErrorKind)
	}
	if err := out.Project.Validate(); err != nil {
		t.Fatalf("failed project invalid: %v", err)
	}
}

func TestRenderWithoutMusicFileStillCompletes(t *testing.T) {
	h := newHarness(t)
	out, err := h.manager.Create(context.Background(), pipeline.CreateRequest{
		Topic:         "Wind",
		BackgroundRef: "classroom.png",
		MusicRef:      "missing.mp3",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := out.Project.ID
	if _, err := h.manager.Approve(context.Background(), id, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := h.manager.Synthesize(context.Background(), id); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	done, err := h.manager.Render(context.Background(), id)
	if err != nil || done.Project.Status != project.StatusCompleted {
		t.Fatalf("Render = %+v, %v", done, err)
	}
	if cmd := h.executor.lastCommand(); len(cmd.StagesOf(filtergraph.StageAudio)) != 0 {
		t.Fatal("missing music still produced a mix stage")
	}
}

func TestPlanDoesNotChangeState(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Rivers")

	cmd, err := h.manager.Plan(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(cmd.StagesOf(filtergraph.StageOverlay)) != 4 {
		t.Fatalf("plan overlays = %d", len(cmd.StagesOf(filtergraph.StageOverlay)))
	}
	stored, _ := h.manager.Get(context.Background(), p.ID)
	if stored.Status != project.StatusAudioReady {
		t.Fatalf("status = %s after plan", stored.Status)
	}
}

func TestRegenerateRejectsApproved(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, "Bees")
	if _, err := h.manager.Approve(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	out, err := h.manager.Regenerate(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if out.Applied {
		t.Fatal("regenerate applied to an approved project")
	}
}

func TestRegenerateClearsAudio(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Volcanoes")
	h.setStatus(t, p.ID, project.StatusFailed)

	out, err := h.manager.Regenerate(context.Background(), p.ID)
	if err != nil || !out.Applied {
		t.Fatalf("Regenerate = %+v, %v", out, err)
	}
	got := out.Project
	if got.Status != project.StatusDraft || got.VoiceoverPath != "" || len(got.Scenes) != 0 || got.ErrorKind != "" {
		t.Fatalf("regenerated project = %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("regenerated project invalid: %v", err)
	}
}

func TestDeleteRemovesProjectAndFiles(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Caves")
	dir := h.cfg.ProjectDir(p.ID)
	testsupport.WriteFile(t, filepath.Join(dir, "voiceover", "combined_voiceover.mp3"), 16)

	out, err := h.manager.Delete(context.Background(), p.ID)
	if err != nil || !out.Applied {
		t.Fatalf("Delete = %+v, %v", out, err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("project dir still exists: %v", err)
	}
	if _, err := h.manager.Get(context.Background(), p.ID); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
	if _, err := h.manager.Delete(context.Background(), p.ID); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("second Delete = %v", err)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Storms")
	if ok, err := h.store.Transition(context.Background(), p.ID, project.StatusAudioReady, project.StatusRendering); err != nil || !ok {
		t.Fatalf("Transition = %v, %v", ok, err)
	}

	n, err := h.manager.RecoverInterrupted(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("RecoverInterrupted = %d, %v", n, err)
	}
	retry, err := h.manager.RetryRender(context.Background(), p.ID)
	if err != nil || !retry.Applied {
		t.Fatalf("RetryRender = %+v, %v", retry, err)
	}
}

func TestNewRejectsInvalidCanvas(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Canvas.Width = 1081
	_, err := pipeline.New(cfg, pipeline.Deps{
		Store:     testsupport.MustOpenStore(t, cfg),
		Script:    &fakeScript{},
		Voiceover: &fakeVoice{},
		Assets:    assets.New(cfg.Paths.AssetsDir),
		Executor:  &fakeExecutor{},
	})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("New error = %v, want ErrConfiguration", err)
	}
}

func TestNotificationsFollowLifecycle(t *testing.T) {
	h := newHarness(t)
	p := h.audioReady(t, "Why is the sky blue?")

	h.executor.err = services.Wrap(services.ErrExecution, pipeline.StageRender, "ffmpeg", "ffmpeg exited with status 1", errors.New("exit status 1"))
	if _, err := h.manager.Render(context.Background(), p.ID); err != nil {
		t.Fatalf("Render: %v", err)
	}
	h.executor.err = nil
	if out, err := h.manager.RetryRender(context.Background(), p.ID); err != nil || !out.Applied {
		t.Fatalf("RetryRender = %+v, %v", out, err)
	}
	h.notifier.err = errors.New("ntfy unreachable")
	out, err := h.manager.Render(context.Background(), p.ID)
	if err != nil || out.Project.Status != project.StatusCompleted {
		t.Fatalf("a failed notification must not fail the render: %+v, %v", out, err)
	}

	want := []notifications.Event{notifications.EventScriptReady, notifications.EventProjectFailed, notifications.EventVideoReady}
	if !slices.Equal(h.notifier.events, want) {
		t.Fatalf("events = %v, want %v", h.notifier.events, want)
	}
	failed := h.notifier.last[notifications.EventProjectFailed]
	if failed["stage"] != pipeline.StageRender || failed["kind"] != services.KindExecution {
		t.Fatalf("failure payload = %v", failed)
	}
	if ready := h.notifier.last[notifications.EventVideoReady]; ready["output"] != h.manager.OutputPath(p.ID) {
		t.Fatalf("video payload = %v", ready)
	}
}
