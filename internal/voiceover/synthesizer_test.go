package voiceover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"duet/internal/scene"
	"duet/internal/services"
	"duet/internal/services/retry"
)

type fakeSpeaker struct {
	mu       sync.Mutex
	calls    map[string]string
	failText string
	err      error
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSpeaker) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if text == f.failText {
		return nil, f.err
	}
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]string)
	}
	f.calls[text] = voiceID
	f.mu.Unlock()
	return []byte("audio:" + text), nil
}

// probeByLength reports one second per four bytes of segment audio.
func probeByLength(_ context.Context, path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return float64(len(data)) / 4, nil
}

func skyScript() scene.Script {
	return scene.Script{Lines: []scene.DialogueLine{
		{Role: scene.RoleQuestioner, SpeakerName: "Thabo", Text: "Why is the sky blue?"},
		{Role: scene.RoleExplainer, SpeakerName: "Lerato", Text: "Scattering."},
		{Role: scene.RoleQuestioner, SpeakerName: "Thabo", Text: "Neat!"},
	}}
}

func testVoices() scene.Voices {
	return scene.Voices{Questioner: "voice-q", Explainer: "voice-e"}
}

func TestSynthesizeProducesOrderedSegments(t *testing.T) {
	stubFFmpeg(t, "success")
	speaker := &fakeSpeaker{}
	synth := New(speaker, nil, WithProber(probeByLength), WithConcurrency(2))
	dir := filepath.Join(t.TempDir(), "voiceover")

	result, err := synth.Synthesize(context.Background(), scene.VoiceoverRequest{
		Script:    skyScript(),
		Voices:    testVoices(),
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(result.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(result.Segments))
	}
	wantDurations := []float64{
		float64(len("audio:Why is the sky blue?")) / 4,
		float64(len("audio:Scattering.")) / 4,
		float64(len("audio:Neat!")) / 4,
	}
	start := 0.0
	for i, seg := range result.Segments {
		if seg.StartSeconds != start || seg.DurationSeconds != wantDurations[i] {
			t.Fatalf("segment %d = start %v duration %v, want %v/%v", i, seg.StartSeconds, seg.DurationSeconds, start, wantDurations[i])
		}
		if filepath.Base(seg.Path) != fmt.Sprintf("scene_%03d.mp3", i+1) {
			t.Fatalf("unexpected segment path %s", seg.Path)
		}
		start += wantDurations[i]
	}
	if result.TotalSeconds != start {
		t.Fatalf("expected total %v, got %v", start, result.TotalSeconds)
	}
	if result.Path != filepath.Join(dir, CombinedFileName) {
		t.Fatalf("unexpected combined path %s", result.Path)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("combined voiceover missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, concatListName)); !os.IsNotExist(err) {
		t.Fatalf("expected concat list to be removed, stat err = %v", err)
	}
	if speaker.calls["Scattering."] != "voice-e" || speaker.calls["Neat!"] != "voice-q" {
		t.Fatalf("lines voiced with wrong voices: %v", speaker.calls)
	}
	if peak := speaker.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", peak)
	}
}

func TestSynthesizeProviderFailure(t *testing.T) {
	stubFFmpeg(t, "success")
	speaker := &fakeSpeaker{failText: "Scattering.", err: &retry.StatusError{Service: "tts", StatusCode: 401, Body: "invalid key"}}
	synth := New(speaker, nil, WithProber(probeByLength))

	_, err := synth.Synthesize(context.Background(), scene.VoiceoverRequest{
		Script:    skyScript(),
		Voices:    testVoices(),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api key hint, got %v", err)
	}
}

func TestSynthesizeValidatesRequest(t *testing.T) {
	synth := New(&fakeSpeaker{}, nil, WithProber(probeByLength))
	tests := []scene.VoiceoverRequest{
		{Voices: testVoices(), OutputDir: t.TempDir()},
		{Script: skyScript(), Voices: testVoices()},
		{Script: skyScript(), Voices: scene.Voices{Questioner: "q"}, OutputDir: t.TempDir()},
	}
	for i, req := range tests {
		if _, err := synth.Synthesize(context.Background(), req); !errors.Is(err, services.ErrSynthesis) {
			t.Fatalf("case %d: expected ErrSynthesis, got %v", i, err)
		}
	}
}

func TestSynthesizeConcatFailure(t *testing.T) {
	stubFFmpeg(t, "failure")
	synth := New(&fakeSpeaker{}, nil, WithProber(probeByLength))
	_, err := synth.Synthesize(context.Background(), scene.VoiceoverRequest{
		Script:    skyScript(),
		Voices:    testVoices(),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, services.ErrSynthesis) || !strings.Contains(err.Error(), "concat") {
		t.Fatalf("expected concat ErrSynthesis, got %v", err)
	}
}

func TestSynthesizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	speaker := &fakeSpeaker{failText: "Why is the sky blue?", err: context.Canceled}
	synth := New(speaker, nil, WithProber(probeByLength))
	_, err := synth.Synthesize(ctx, scene.VoiceoverRequest{
		Script:    skyScript(),
		Voices:    testVoices(),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected bare context.Canceled, got %v", err)
	}
}

func stubFFmpeg(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		output := args[len(args)-1]
		if err := os.WriteFile(output, []byte("combined"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
