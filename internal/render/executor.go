package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"duet/internal/config"
	"duet/internal/filtergraph"
	"duet/internal/logging"
	"duet/internal/media/ffprobe"
	"duet/internal/services"
)

const stderrTailBytes = 2048

var commandContext = exec.CommandContext

// ErrBusy reports an output path already locked by another render.
var ErrBusy = errors.New("output is locked by another render")

// Result describes a finished render.
type Result struct {
	OutputPath      string
	DurationSeconds float64
	Width           int
	Height          int
	Elapsed         time.Duration
}

// Inspector probes a finished file.
type Inspector func(ctx context.Context, path string) (ffprobe.Result, error)

// Executor runs compiled commands with ffmpeg.
type Executor struct {
	ffmpeg  string
	inspect Inspector
	logger  *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithInspector overrides how finished renders are probed.
func WithInspector(inspect Inspector) Option {
	return func(e *Executor) {
		if inspect != nil {
			e.inspect = inspect
		}
	}
}

// New returns an Executor that runs ffmpegBinary and probes results with
// ffprobeBinary.
func New(ffmpegBinary, ffprobeBinary string, logger *slog.Logger, opts ...Option) *Executor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	e := &Executor{
		ffmpeg: ffmpegBinary,
		inspect: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		logger: logging.NewComponentLogger(logger, "render"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig builds an Executor from the configured binaries.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Executor {
	return New(cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary, logger)
}

// Run executes cmd writing to outputPath. Failures wrap
// services.ErrExecution; cancellation wraps services.ErrCancelled.
func (e *Executor) Run(ctx context.Context, cmd *filtergraph.Command, outputPath string) (Result, error) {
	if cmd == nil {
		return Result{}, execErr("validate", "no command to run", nil)
	}
	outputPath = strings.TrimSpace(outputPath)
	if outputPath == "" {
		return Result{}, execErr("validate", "output path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, execErr("prepare output", "cannot create output directory", err)
	}

	// The lock file is left in place so every render locks the same inode.
	lock := flock.New(outputPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, execErr("lock output", "cannot lock output", err)
	}
	if !locked {
		return Result{}, execErr("lock output", "render already running for "+filepath.Base(outputPath), ErrBusy)
	}
	defer func() { _ = lock.Unlock() }()

	partial := partialPath(outputPath)
	_ = os.Remove(partial)

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("ffmpeg starting",
		logging.String(logging.FieldEventType, "render_start"),
		logging.String("output", outputPath),
		logging.Int("stages", len(cmd.Stages)),
	)

	started := time.Now()
	process := commandContext(ctx, e.ffmpeg, cmd.Args(partial)...) //nolint:gosec
	var stderr tailBuffer
	process.Stderr = &stderr
	runErr := process.Run()
	elapsed := time.Since(started)

	if runErr != nil {
		_ = os.Remove(partial)
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrCancelled, "render", "ffmpeg", "render cancelled", ctx.Err())
		}
		return Result{}, execErr("ffmpeg", describeFailure(runErr, stderr.String()), runErr)
	}
	if info, err := os.Stat(partial); err != nil || info.Size() == 0 {
		_ = os.Remove(partial)
		return Result{}, execErr("verify output", "ffmpeg exited cleanly but wrote no video", err)
	}
	if err := os.Rename(partial, outputPath); err != nil {
		_ = os.Remove(partial)
		return Result{}, execErr("finalize output", "cannot move render into place", err)
	}

	result := Result{OutputPath: outputPath, DurationSeconds: cmd.DurationSeconds, Elapsed: elapsed}
	if probe, err := e.inspect(ctx, outputPath); err != nil {
		logging.WarnWithContext(logger, "could not probe finished render", "render_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "duration falls back to the compiled length"),
		)
	} else {
		if d := probe.DurationSeconds(); d > 0 {
			result.DurationSeconds = d
		}
		result.Width, result.Height, _ = probe.Dimensions()
	}

	logger.Info("ffmpeg finished",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("output", outputPath),
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.Duration("elapsed", elapsed),
	)
	return result, nil
}

// partialPath keeps the extension so ffmpeg still infers the container.
func partialPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".partial" + ext
}

func describeFailure(err error, stderr string) string {
	msg := "ffmpeg failed"
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg = fmt.Sprintf("ffmpeg exited with status %d", exitErr.ExitCode())
	}
	if tail := lastLine(stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func execErr(operation, message string, err error) error {
	return services.Wrap(services.ErrExecution, "render", operation, message, err)
}

// tailBuffer keeps the last stderrTailBytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - stderrTailBytes; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
