package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"duet/internal/config"
	"duet/internal/deps"
	"duet/internal/services/llm"
	"duet/internal/services/retry"
	"duet/internal/services/tts"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetry(retry.Once))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckVoiceover verifies the text-to-speech key by listing voices and
// confirms both configured voices exist.
func CheckVoiceover(ctx context.Context, name string, cfg config.Voiceover) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := tts.NewClient(tts.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		ModelID: cfg.ModelID,
	}, tts.WithRetry(retry.Once))

	voices, err := client.ListVoices(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeRemoteError("voiceover API", err)}
	}
	known := make(map[string]struct{}, len(voices))
	for _, v := range voices {
		known[v.ID] = struct{}{}
	}
	var missing []string
	for _, id := range []string{cfg.QuestionerVoiceID, cfg.ExplainerVoiceID} {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("voice not available to this key: %s", strings.Join(missing, ", "))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%d voices)", len(voices))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the media binaries named in cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Lookup {
	return deps.Locate(deps.MediaBinaries(cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary)...)
}

// CheckFFmpegFilters confirms the ffmpeg build provides every filter a
// render uses.
func CheckFFmpegFilters(ctx context.Context, binary string) Result {
	const name = "FFmpeg filters"
	info, err := deps.CheckFFmpeg(ctx, binary)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if len(info.MissingFilters) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("ffmpeg %s lacks %s", info.Version, strings.Join(info.MissingFilters, ", "))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("ffmpeg %s", info.Version)}
}

// summarizeRemoteError produces a human-readable summary for API health failures.
func summarizeRemoteError(service string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", service)
	}
	return err.Error()
}
