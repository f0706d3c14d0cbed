package voiceover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"duet/internal/config"
	"duet/internal/logging"
	"duet/internal/media/ffprobe"
	"duet/internal/scene"
	"duet/internal/services"
	"duet/internal/services/retry"
	"duet/internal/services/tts"
)

const (
	// CombinedFileName is the concatenated narration written to the output directory.
	CombinedFileName = "combined_voiceover.mp3"
	concatListName   = "concat_list.txt"
)

var commandContext = exec.CommandContext

// Speaker converts text into audio bytes with a voice.
type Speaker interface {
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)
}

// Prober reports the duration of an audio file in seconds.
type Prober func(ctx context.Context, path string) (float64, error)

// Synthesizer produces voiceovers for scripts.
type Synthesizer struct {
	speaker     Speaker
	probe       Prober
	ffmpeg      string
	concurrency int
	logger      *slog.Logger
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithProber overrides segment duration probing.
func WithProber(probe Prober) Option {
	return func(s *Synthesizer) {
		if probe != nil {
			s.probe = probe
		}
	}
}

// WithConcurrency bounds concurrent provider calls.
func WithConcurrency(n int) Option {
	return func(s *Synthesizer) {
		s.concurrency = n
	}
}

// WithFFmpeg sets the ffmpeg binary used for concatenation.
func WithFFmpeg(binary string) Option {
	return func(s *Synthesizer) {
		if strings.TrimSpace(binary) != "" {
			s.ffmpeg = binary
		}
	}
}

// New returns a Synthesizer that voices lines through speaker.
func New(speaker Speaker, logger *slog.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		speaker:     speaker,
		ffmpeg:      "ffmpeg",
		concurrency: 3,
		logger:      logging.NewComponentLogger(logger, "voiceover"),
	}
	s.probe = func(ctx context.Context, path string) (float64, error) {
		return ffprobe.Duration(ctx, "ffprobe", path)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig wires the configured TTS provider and media binaries.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Synthesizer {
	client := tts.NewClient(tts.Config{
		APIKey:         cfg.Voiceover.APIKey,
		BaseURL:        cfg.Voiceover.BaseURL,
		ModelID:        cfg.Voiceover.ModelID,
		TimeoutSeconds: cfg.Voiceover.TimeoutSeconds,
	})
	probeBinary := cfg.FFmpeg.FFprobeBinary
	return New(client, logger,
		WithConcurrency(cfg.Voiceover.Concurrency),
		WithFFmpeg(cfg.FFmpeg.FFmpegBinary),
		WithProber(func(ctx context.Context, path string) (float64, error) {
			return ffprobe.Duration(ctx, probeBinary, path)
		}),
	)
}

// Synthesize voices every line of req.Script into req.OutputDir.
func (s *Synthesizer) Synthesize(ctx context.Context, req scene.VoiceoverRequest) (scene.Voiceover, error) {
	lines := req.Script.Lines
	if len(lines) == 0 {
		return scene.Voiceover{}, synthesisErr("validate request", "script has no lines", nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return scene.Voiceover{}, synthesisErr("validate request", "output directory is empty", nil)
	}
	for _, role := range scene.Roles {
		if strings.TrimSpace(req.Voices.For(role)) == "" {
			return scene.Voiceover{}, synthesisErr("validate request", fmt.Sprintf("no voice configured for %s", role), nil)
		}
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return scene.Voiceover{}, synthesisErr("prepare output", "cannot create voiceover directory", err)
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("synthesizing voiceover",
		logging.String(logging.FieldEventType, "voiceover_start"),
		logging.Int("lines", len(lines)),
	)

	paths := make([]string, len(lines))
	durations := make([]float64, len(lines))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(s.concurrency, 1))
	for i, line := range lines {
		group.Go(func() error {
			path := filepath.Join(req.OutputDir, fmt.Sprintf("scene_%03d.mp3", i+1))
			audio, err := s.speaker.Synthesize(groupCtx, req.Voices.For(line.Role), line.Text)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			if err := os.WriteFile(path, audio, 0o644); err != nil {
				return fmt.Errorf("line %d: write segment: %w", i+1, err)
			}
			seconds, err := s.probe(groupCtx, path)
			if err != nil {
				return fmt.Errorf("line %d: probe segment: %w", i+1, err)
			}
			paths[i] = path
			durations[i] = seconds
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return scene.Voiceover{}, ctx.Err()
		}
		return scene.Voiceover{}, synthesisErr("synthesize lines", "text-to-speech failed", err)
	}

	result := scene.Voiceover{
		Path:     filepath.Join(req.OutputDir, CombinedFileName),
		Segments: make([]scene.Segment, len(lines)),
	}
	elapsed := 0.0
	for i := range lines {
		result.Segments[i] = scene.Segment{
			Path:            paths[i],
			StartSeconds:    elapsed,
			DurationSeconds: durations[i],
		}
		elapsed += durations[i]
	}
	result.TotalSeconds = elapsed

	if err := s.concat(ctx, paths, result.Path); err != nil {
		if ctx.Err() != nil {
			return scene.Voiceover{}, ctx.Err()
		}
		return scene.Voiceover{}, synthesisErr("concatenate", "combining voiceover segments failed", err)
	}
	logger.Info("voiceover ready",
		logging.String(logging.FieldEventType, "voiceover_complete"),
		logging.Float64("total_seconds", result.TotalSeconds),
		logging.String("path", result.Path),
	)
	return result, nil
}

func (s *Synthesizer) concat(ctx context.Context, paths []string, output string) error {
	listPath := filepath.Join(filepath.Dir(output), concatListName)
	var b strings.Builder
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := commandContext(ctx, s.ffmpeg, "-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("ffmpeg concat produced no output: %w", err)
	}
	return nil
}

func synthesisErr(operation, message string, err error) error {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		message += " (check voiceover api_key)"
	}
	return services.Wrap(services.ErrSynthesis, "voiceover", operation, message, err)
}
