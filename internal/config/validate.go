package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCanvas(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateVoiceover(); err != nil {
		return err
	}
	if err := c.validateScript(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCanvas() error {
	cv := c.Canvas
	if cv.Width <= 0 || cv.Height <= 0 {
		return errors.New("canvas.width and canvas.height must be positive")
	}
	if cv.FPS <= 0 {
		return errors.New("canvas.fps must be positive")
	}
	if cv.LeftXOffset < 0 || cv.LeftXOffset >= cv.Width {
		return fmt.Errorf("canvas.left_x_offset must be within [0, %d)", cv.Width)
	}
	if cv.RightXOffset <= 0 || cv.RightXOffset > cv.Width {
		return fmt.Errorf("canvas.right_x_offset must be within (0, %d]", cv.Width)
	}
	if cv.FadeSeconds < 0 {
		return errors.New("canvas.fade_seconds must not be negative")
	}
	if cv.WrapColumns < 0 {
		return errors.New("canvas.wrap_columns must not be negative")
	}
	if cv.CaptionFontSize <= 0 || cv.LabelFontSize <= 0 {
		return errors.New("canvas font sizes must be positive")
	}
	if cv.CharacterHeight <= 0 || cv.CharacterHeight > cv.Height {
		return fmt.Errorf("canvas.character_height must be within (0, %d]", cv.Height)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	enc := c.Encoding
	if strings.TrimSpace(enc.VideoCodec) == "" {
		return errors.New("encoding.video_codec must be set")
	}
	if strings.TrimSpace(enc.AudioCodec) == "" {
		return errors.New("encoding.audio_codec must be set")
	}
	if strings.TrimSpace(enc.PixelFormat) == "" {
		return errors.New("encoding.pixel_format must be set")
	}
	if enc.CRF < 0 || enc.CRF > 51 {
		return errors.New("encoding.crf must be between 0 and 51")
	}
	if enc.MusicVolume < 0 || enc.MusicVolume > 1 {
		return errors.New("encoding.music_volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateVoiceover() error {
	if strings.TrimSpace(c.Voiceover.QuestionerVoiceID) == "" || strings.TrimSpace(c.Voiceover.ExplainerVoiceID) == "" {
		return errors.New("voiceover.questioner_voice_id and voiceover.explainer_voice_id must be set")
	}
	return nil
}

func (c *Config) validateScript() error {
	if !slices.Contains(Styles, c.Script.DefaultStyle) {
		return fmt.Errorf("script.default_style must be one of %s", strings.Join(Styles, ", "))
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
