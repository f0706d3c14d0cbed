package filtergraph

import (
	"strconv"
	"strings"
)

// StageKind classifies a filter stage.
type StageKind int

const (
	StageBackground StageKind = iota
	StagePose
	StageOverlay
	StagePassthrough
	StageAudio
	StageIdle
)

func (k StageKind) String() string {
	switch k {
	case StageBackground:
		return "background"
	case StagePose:
		return "pose"
	case StageOverlay:
		return "overlay"
	case StagePassthrough:
		return "passthrough"
	case StageAudio:
		return "audio"
	case StageIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Input is one -i source of the command.
type Input struct {
	Path string
	// LoopImage repeats a still image as a video stream.
	LoopImage bool
	// LoopStream repeats a finite media file indefinitely.
	LoopStream bool
	FrameRate  int
}

func (in Input) args() []string {
	var args []string
	if in.LoopImage {
		args = append(args, "-loop", "1")
		if in.FrameRate > 0 {
			args = append(args, "-framerate", strconv.Itoa(in.FrameRate))
		}
	}
	if in.LoopStream {
		args = append(args, "-stream_loop", "-1")
	}
	return append(args, "-i", in.Path)
}

// Stage is one filter chain: labelled inputs, comma-joined filters, labelled
// outputs. Scene is the 1-based scene number for overlay stages.
type Stage struct {
	Kind    StageKind
	Scene   int
	Inputs  []string
	Filters []string
	Outputs []string
}

// String renders the stage in filtergraph syntax.
func (s Stage) String() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		b.WriteByte('[')
		b.WriteString(in)
		b.WriteByte(']')
	}
	b.WriteString(strings.Join(s.Filters, ","))
	for _, out := range s.Outputs {
		b.WriteByte('[')
		b.WriteString(out)
		b.WriteByte(']')
	}
	return b.String()
}

// Command is the typed composition command produced by Compile. It is
// serialized to ffmpeg arguments only by Args.
type Command struct {
	Inputs []Input
	Stages []Stage
	// VideoLabel is the filter output mapped as the video stream.
	VideoLabel string
	// AudioLabel is a filter output label, or empty when AudioStream is
	// mapped directly.
	AudioLabel  string
	AudioStream string
	Encoding    Encoding
	FPS         int
	// DurationSeconds caps the output length when positive.
	DurationSeconds float64
}

// FilterComplex joins every stage into a -filter_complex value.
func (c *Command) FilterComplex() string {
	parts := make([]string, 0, len(c.Stages))
	for _, stage := range c.Stages {
		parts = append(parts, stage.String())
	}
	return strings.Join(parts, ";")
}

// StagesOf returns the stages of kind k in order.
func (c *Command) StagesOf(k StageKind) []Stage {
	var out []Stage
	for _, stage := range c.Stages {
		if stage.Kind == k {
			out = append(out, stage)
		}
	}
	return out
}

// Args builds the complete ffmpeg argument list writing to outputPath.
func (c *Command) Args(outputPath string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
	for _, in := range c.Inputs {
		args = append(args, in.args()...)
	}
	args = append(args, "-filter_complex", c.FilterComplex())
	args = append(args, "-map", "["+c.VideoLabel+"]")
	if c.AudioLabel != "" {
		args = append(args, "-map", "["+c.AudioLabel+"]")
	} else if c.AudioStream != "" {
		args = append(args, "-map", c.AudioStream)
	}

	enc := c.Encoding
	args = append(args, "-c:v", enc.VideoCodec)
	if enc.Preset != "" {
		args = append(args, "-preset", enc.Preset)
	}
	args = append(args, "-crf", strconv.Itoa(enc.CRF), "-pix_fmt", enc.PixelFormat)
	if c.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(c.FPS))
	}
	args = append(args, "-c:a", enc.AudioCodec)
	if enc.AudioBitrate != "" {
		args = append(args, "-b:a", enc.AudioBitrate)
	}
	if c.DurationSeconds > 0 {
		args = append(args, "-t", formatSeconds(c.DurationSeconds))
	}
	args = append(args, "-shortest", "-movflags", "+faststart", outputPath)
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
