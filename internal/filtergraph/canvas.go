package filtergraph

import (
	"errors"
	"fmt"
	"strings"
)

// Canvas is the output frame geometry plus overlay placement.
type Canvas struct {
	Width           int
	Height          int
	FPS             int
	LeftXOffset     int
	RightXOffset    int
	FontFile        string
	CaptionFontSize int
	LabelFontSize   int
	CaptionBottom   int
	LabelBottom     int
	FadeSeconds     float64
	WrapColumns     int
	CharacterHeight int
	CharacterBottom int
}

// Validate checks the canvas can be rendered with pixelFormat.
func (c Canvas) Validate(pixelFormat string) error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas size %dx%d must be positive", c.Width, c.Height)
	}
	if strings.HasPrefix(pixelFormat, "yuv420") && (c.Width%2 != 0 || c.Height%2 != 0) {
		return fmt.Errorf("canvas size %dx%d must be even for %s", c.Width, c.Height, pixelFormat)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps %d must be positive", c.FPS)
	}
	if c.LeftXOffset < 0 || c.LeftXOffset >= c.Width {
		return fmt.Errorf("left offset %d outside canvas width %d", c.LeftXOffset, c.Width)
	}
	if c.RightXOffset <= 0 || c.RightXOffset > c.Width {
		return fmt.Errorf("right offset %d outside canvas width %d", c.RightXOffset, c.Width)
	}
	if c.FadeSeconds < 0 {
		return errors.New("fade duration must not be negative")
	}
	if c.CaptionFontSize <= 0 || c.LabelFontSize <= 0 {
		return errors.New("font sizes must be positive")
	}
	if c.CharacterHeight < 0 || c.CharacterHeight > c.Height {
		return fmt.Errorf("character height %d outside canvas height %d", c.CharacterHeight, c.Height)
	}
	return nil
}

// AnchorX returns the horizontal overlay position for a speaker on the left
// (questioner) or right (explainer) side.
func (c Canvas) AnchorX(right bool) int {
	if right {
		return c.Width - c.RightXOffset
	}
	return c.LeftXOffset
}

// Encoding holds the codec parameters emitted on every command.
type Encoding struct {
	VideoCodec   string
	Preset       string
	CRF          int
	PixelFormat  string
	AudioCodec   string
	AudioBitrate string
	MusicVolume  float64
}

// Validate checks the encoding parameters are usable.
func (e Encoding) Validate() error {
	if strings.TrimSpace(e.VideoCodec) == "" {
		return errors.New("video codec must be set")
	}
	if strings.TrimSpace(e.AudioCodec) == "" {
		return errors.New("audio codec must be set")
	}
	if strings.TrimSpace(e.PixelFormat) == "" {
		return errors.New("pixel format must be set")
	}
	if e.CRF < 0 || e.CRF > 51 {
		return fmt.Errorf("crf %d outside 0-51", e.CRF)
	}
	if e.MusicVolume < 0 || e.MusicVolume > 1 {
		return fmt.Errorf("music volume %.2f outside 0-1", e.MusicVolume)
	}
	return nil
}
