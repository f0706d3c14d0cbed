package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"duet/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ProjectsDir string `toml:"projects_dir"`
	AssetsDir   string `toml:"assets_dir"`
	LogDir      string `toml:"log_dir"`
}

// Canvas describes the output frame and where overlays land on it.
type Canvas struct {
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	FPS             int     `toml:"fps"`
	LeftXOffset     int     `toml:"left_x_offset"`
	RightXOffset    int     `toml:"right_x_offset"`
	FontFile        string  `toml:"font_file"`
	CaptionFontSize int     `toml:"caption_font_size"`
	LabelFontSize   int     `toml:"label_font_size"`
	CaptionBottom   int     `toml:"caption_bottom"`
	LabelBottom     int     `toml:"label_bottom"`
	FadeSeconds     float64 `toml:"fade_seconds"`
	WrapColumns     int     `toml:"wrap_columns"`
	CharacterHeight int     `toml:"character_height"`
	CharacterBottom int     `toml:"character_bottom"`
}

// Encoding contains codec parameters applied to every render.
type Encoding struct {
	VideoCodec   string  `toml:"video_codec"`
	Preset       string  `toml:"preset"`
	CRF          int     `toml:"crf"`
	PixelFormat  string  `toml:"pixel_format"`
	AudioCodec   string  `toml:"audio_codec"`
	AudioBitrate string  `toml:"audio_bitrate"`
	MusicVolume  float64 `toml:"music_volume"`
}

// FFmpeg names the media binaries.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// LLM contains language model connection settings used by script generation.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Voiceover contains text-to-speech provider settings.
type Voiceover struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	ModelID           string `toml:"model_id"`
	QuestionerVoiceID string `toml:"questioner_voice_id"`
	ExplainerVoiceID  string `toml:"explainer_voice_id"`
	Concurrency       int    `toml:"concurrency"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Script contains defaults for generated dialogue.
type Script struct {
	QuestionerName        string `toml:"questioner_name"`
	ExplainerName         string `toml:"explainer_name"`
	DefaultStyle          string `toml:"default_style"`
	TargetDurationSeconds int    `toml:"target_duration_seconds"`
}

// Notifications configures ntfy delivery of project events.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for duet.
//
// Configuration sections by subsystem:
//   - Paths: project working directories, asset library, logs
//   - Canvas: output frame size and overlay placement
//   - Encoding: codec and mixing parameters
//   - FFmpeg: media binaries
//   - LLM: script generation endpoint
//   - Voiceover: text-to-speech endpoint and default voices
//   - Script: default character names, style, and length
//   - Notifications: ntfy topic for script, video, and failure events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Canvas        Canvas        `toml:"canvas"`
	Encoding      Encoding      `toml:"encoding"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	LLM           LLM           `toml:"llm"`
	Voiceover     Voiceover     `toml:"voiceover"`
	Script        Script        `toml:"script"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/duet/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("duet.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the project, asset, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ProjectsDir, c.Paths.AssetsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the project database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.ProjectsDir, "duet.db")
}

// ProjectDir returns the working directory that holds one project's
// voiceover segments and rendered output.
func (c *Config) ProjectDir(id int64) string {
	return filepath.Join(c.Paths.ProjectsDir, fmt.Sprintf("project-%d", id))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the commented sample configuration to path, creating
// parent directories. An existing file is kept unless overwrite is set, in
// which case it is replaced atomically.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if overwrite {
		return fileutil.WriteAtomic(path, []byte(sampleConfig), 0o644)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}
