package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"duet/internal/filtergraph"
	"duet/internal/media/ffprobe"
	"duet/internal/services"
)

func testCommand() *filtergraph.Command {
	return &filtergraph.Command{
		Inputs: []filtergraph.Input{{Path: "/assets/bg.png", LoopImage: true}, {Path: "/p/combined_voiceover.mp3"}},
		Stages: []filtergraph.Stage{
			{Kind: filtergraph.StageBackground, Inputs: []string{"0:v"}, Filters: []string{"scale=1080:1920"}, Outputs: []string{"bg"}},
			{Kind: filtergraph.StagePassthrough, Inputs: []string{"bg"}, Filters: []string{"null"}, Outputs: []string{"outv"}},
		},
		VideoLabel:      "outv",
		AudioStream:     "1:a",
		Encoding:        filtergraph.Encoding{VideoCodec: "libx264", PixelFormat: "yuv420p", AudioCodec: "aac"},
		FPS:             30,
		DurationSeconds: 6,
	}
}

func fixedProbe(duration string) Inspector {
	return func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", Width: 1080, Height: 1920}},
			Format:  ffprobe.Format{Duration: duration},
		}, nil
	}
}

func TestRunWritesOutputAtomically(t *testing.T) {
	captured := stubFFmpeg(t, "success")
	output := filepath.Join(t.TempDir(), "project-1", "output.mp4")

	executor := New("ffmpeg", "ffprobe", nil, WithInspector(fixedProbe("6.042")))
	result, err := executor.Run(context.Background(), testCommand(), output)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OutputPath != output || result.DurationSeconds != 6.042 || result.Width != 1080 || result.Height != 1920 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(partialPath(output)); !os.IsNotExist(err) {
		t.Fatalf("expected partial output to be removed, stat err = %v", err)
	}
	args := *captured
	if len(args) == 0 || args[len(args)-1] != partialPath(output) {
		t.Fatalf("ffmpeg should write to the partial path, args = %v", args)
	}
	if !containsArg(args, "-filter_complex") {
		t.Fatalf("expected -filter_complex in args %v", args)
	}
}

func TestRunFallsBackToCompiledDuration(t *testing.T) {
	stubFFmpeg(t, "success")
	output := filepath.Join(t.TempDir(), "output.mp4")
	failing := func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe missing")
	}
	result, err := New("ffmpeg", "ffprobe", nil, WithInspector(failing)).Run(context.Background(), testCommand(), output)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.DurationSeconds != 6 {
		t.Fatalf("expected compiled duration 6, got %v", result.DurationSeconds)
	}
}

func TestRunFailureLeavesNoOutput(t *testing.T) {
	stubFFmpeg(t, "failure")
	output := filepath.Join(t.TempDir(), "output.mp4")

	_, err := New("ffmpeg", "ffprobe", nil, WithInspector(fixedProbe("1"))).Run(context.Background(), testCommand(), output)
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such filter") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
	for _, path := range []string{output, partialPath(output)} {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Fatalf("expected %s to be absent after failure", path)
		}
	}
	if services.RecoveryAction(err) != services.RecoverRetryRender {
		t.Fatalf("expected retry-render recovery, got %s", services.RecoveryAction(err))
	}
}

func TestRunEmptyOutputIsFailure(t *testing.T) {
	stubFFmpeg(t, "empty")
	output := filepath.Join(t.TempDir(), "output.mp4")
	_, err := New("ffmpeg", "ffprobe", nil, WithInspector(fixedProbe("1"))).Run(context.Background(), testCommand(), output)
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	stubFFmpeg(t, "success")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	output := filepath.Join(t.TempDir(), "output.mp4")

	_, err := New("ffmpeg", "ffprobe", nil).Run(ctx, testCommand(), output)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if services.ErrorKind(err) != services.KindCancelled {
		t.Fatalf("expected cancelled kind, got %s", services.ErrorKind(err))
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatal("cancelled render must not leave output")
	}
}

func TestRunRejectsLockedOutput(t *testing.T) {
	stubFFmpeg(t, "success")
	output := filepath.Join(t.TempDir(), "output.mp4")
	held := flock.New(output + ".lock")
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	_, err = New("ffmpeg", "ffprobe", nil).Run(context.Background(), testCommand(), output)
	if !errors.Is(err, ErrBusy) || !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected ErrBusy execution error, got %v", err)
	}
}

func TestRunReleasesLockAndKeepsLockFile(t *testing.T) {
	stubFFmpeg(t, "success")
	output := filepath.Join(t.TempDir(), "output.mp4")
	executor := New("ffmpeg", "ffprobe", nil, WithInspector(fixedProbe("6")))

	if _, err := executor.Run(context.Background(), testCommand(), output); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	info, err := os.Stat(output + ".lock")
	if err != nil {
		t.Fatalf("lock file should remain after render: %v", err)
	}

	held := flock.New(output + ".lock")
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock not released after render: %v, %v", ok, err)
	}
	_ = held.Unlock()

	if _, err := executor.Run(context.Background(), testCommand(), output); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	again, err := os.Stat(output + ".lock")
	if err != nil || !os.SameFile(info, again) {
		t.Fatalf("second render should reuse the lock file, err = %v", err)
	}
}

func TestRunValidatesInput(t *testing.T) {
	e := New("", "", nil)
	if _, err := e.Run(context.Background(), nil, "/tmp/out.mp4"); !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected ErrExecution for nil command, got %v", err)
	}
	if _, err := e.Run(context.Background(), testCommand(), " "); !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected ErrExecution for empty output, got %v", err)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	var tail tailBuffer
	_, _ = tail.Write([]byte(strings.Repeat("a", stderrTailBytes)))
	_, _ = tail.Write([]byte("\nlast line"))
	if got := tail.String(); len(got) != stderrTailBytes || !strings.HasSuffix(got, "last line") {
		t.Fatalf("unexpected tail (%d bytes)", len(got))
	}
}

func stubFFmpeg(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string(nil), args...)
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func containsArg(args []string, target string) bool {
	for _, arg := range args {
		if arg == target {
			return true
		}
	}
	return false
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	output := os.Args[len(os.Args)-1]
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		if err := os.WriteFile(output, []byte("mp4-bytes"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "empty":
		_ = os.WriteFile(output, nil, 0o644)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "[AVFilterGraph @ 0x1] No such filter: 'drawtxt'")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
