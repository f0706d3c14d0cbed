package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCanvas(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	c.normalizeLLM()
	c.normalizeVoiceover()
	c.normalizeScript()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ProjectsDir) == "" {
		c.Paths.ProjectsDir = defaultProjectsDir
	}
	if c.Paths.ProjectsDir, err = expandPath(c.Paths.ProjectsDir); err != nil {
		return fmt.Errorf("paths.projects_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCanvas() error {
	c.Canvas.FontFile = strings.TrimSpace(c.Canvas.FontFile)
	if c.Canvas.FontFile != "" {
		expanded, err := expandPath(c.Canvas.FontFile)
		if err != nil {
			return fmt.Errorf("canvas.font_file: %w", err)
		}
		c.Canvas.FontFile = expanded
	}
	if c.Canvas.FadeSeconds == 0 {
		c.Canvas.FadeSeconds = defaultFadeSeconds
	}
	if c.Canvas.WrapColumns == 0 {
		c.Canvas.WrapColumns = defaultWrapColumns
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLLM() {
	for _, key := range []string{"DUET_LLM_API_KEY", "OPENROUTER_API_KEY"} {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			c.LLM.APIKey = value
			break
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeVoiceover() {
	if value, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Voiceover.APIKey = value
	}
	c.Voiceover.APIKey = strings.TrimSpace(c.Voiceover.APIKey)
	c.Voiceover.BaseURL = strings.TrimRight(strings.TrimSpace(c.Voiceover.BaseURL), "/")
	if c.Voiceover.BaseURL == "" {
		c.Voiceover.BaseURL = defaultVoiceoverBaseURL
	}
	if strings.TrimSpace(c.Voiceover.ModelID) == "" {
		c.Voiceover.ModelID = defaultVoiceoverModelID
	}
	if c.Voiceover.Concurrency <= 0 {
		c.Voiceover.Concurrency = 1
	}
	if c.Voiceover.TimeoutSeconds <= 0 {
		c.Voiceover.TimeoutSeconds = defaultVoiceoverTimeout
	}
}

func (c *Config) normalizeScript() {
	c.Script.QuestionerName = strings.TrimSpace(c.Script.QuestionerName)
	if c.Script.QuestionerName == "" {
		c.Script.QuestionerName = defaultQuestionerName
	}
	c.Script.ExplainerName = strings.TrimSpace(c.Script.ExplainerName)
	if c.Script.ExplainerName == "" {
		c.Script.ExplainerName = defaultExplainerName
	}
	c.Script.DefaultStyle = strings.ToLower(strings.TrimSpace(c.Script.DefaultStyle))
	if c.Script.DefaultStyle == "" {
		c.Script.DefaultStyle = defaultScriptStyle
	}
	if c.Script.TargetDurationSeconds <= 0 {
		c.Script.TargetDurationSeconds = defaultTargetDurationSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
