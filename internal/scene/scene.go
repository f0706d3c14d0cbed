package scene

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies which of the two characters speaks a line.
type Role string

const (
	RoleQuestioner Role = "questioner"
	RoleExplainer  Role = "explainer"
)

// Roles lists both speaker roles in canonical order.
var Roles = []Role{RoleQuestioner, RoleExplainer}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleQuestioner:
		return RoleQuestioner, true
	case RoleExplainer:
		return RoleExplainer, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleQuestioner || r == RoleExplainer
}

// DialogueLine is one utterance of the script.
type DialogueLine struct {
	Role        Role   `json:"speaker_role" yaml:"speaker_role"`
	SpeakerName string `json:"speaker_name" yaml:"speaker_name"`
	Text        string `json:"line" yaml:"line"`
	Pose        string `json:"pose,omitempty" yaml:"pose,omitempty"`
}

// Script is the ordered dialogue produced by the script adapter. It is
// replaced wholesale on regeneration.
type Script struct {
	Lines                 []DialogueLine `json:"lines" yaml:"lines"`
	TargetDurationSeconds int            `json:"target_duration_seconds" yaml:"target_duration_seconds"`
	Takeaway              *string        `json:"takeaway,omitempty" yaml:"takeaway,omitempty"`
}

// Empty reports whether the script has no lines.
func (s *Script) Empty() bool {
	return s == nil || len(s.Lines) == 0
}

// Validate checks every line carries a known role and a speaker name.
func (s Script) Validate() error {
	if len(s.Lines) == 0 {
		return errors.New("script has no lines")
	}
	for i, line := range s.Lines {
		if !line.Role.Valid() {
			return fmt.Errorf("line %d: unknown speaker role %q", i+1, line.Role)
		}
		if strings.TrimSpace(line.SpeakerName) == "" {
			return fmt.Errorf("line %d: speaker name is empty", i+1)
		}
	}
	if s.TargetDurationSeconds < 0 {
		return errors.New("target duration must not be negative")
	}
	return nil
}

// VideoScene is the renderable unit derived from one dialogue line. Timing
// fields stay nil until a voiceover has been synthesized.
type VideoScene struct {
	Number          int      `json:"scene_number"`
	Role            Role     `json:"speaker_role"`
	SpeakerName     string   `json:"speaker_name"`
	Text            string   `json:"text"`
	Pose            string   `json:"pose,omitempty"`
	StartSeconds    *float64 `json:"start_time_seconds,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	BackgroundRef   *string  `json:"background_asset_ref,omitempty"`
}

// Timed reports whether both timing fields are present.
func (v VideoScene) Timed() bool {
	return v.StartSeconds != nil && v.DurationSeconds != nil
}

// End returns start+duration for a timed scene.
func (v VideoScene) End() float64 {
	if !v.Timed() {
		return 0
	}
	return *v.StartSeconds + *v.DurationSeconds
}

// FromScript derives one untimed scene per line, numbered from 1.
func FromScript(script Script) []VideoScene {
	scenes := make([]VideoScene, 0, len(script.Lines))
	for i, line := range script.Lines {
		scenes = append(scenes, VideoScene{
			Number:      i + 1,
			Role:        line.Role,
			SpeakerName: line.SpeakerName,
			Text:        line.Text,
			Pose:        line.Pose,
		})
	}
	return scenes
}

// ApplyTimings zips voiceover segments onto scenes one to one. The input is
// not modified.
func ApplyTimings(scenes []VideoScene, segments []Segment) ([]VideoScene, error) {
	if len(scenes) != len(segments) {
		return nil, &TimingMismatchError{Scenes: len(scenes), Segments: len(segments)}
	}
	out := make([]VideoScene, len(scenes))
	for i, sc := range scenes {
		seg := segments[i]
		if seg.DurationSeconds < 0 || seg.StartSeconds < 0 {
			return nil, fmt.Errorf("segment %d: negative timing (start %.3f, duration %.3f)", i+1, seg.StartSeconds, seg.DurationSeconds)
		}
		start, duration := seg.StartSeconds, seg.DurationSeconds
		sc.StartSeconds = &start
		sc.DurationSeconds = &duration
		out[i] = sc
	}
	if err := CheckOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckOrder verifies timed scenes appear in non-decreasing start order.
func CheckOrder(scenes []VideoScene) error {
	prev := -1.0
	for _, sc := range scenes {
		if sc.StartSeconds == nil {
			continue
		}
		if *sc.StartSeconds < prev {
			return fmt.Errorf("scene %d starts at %.3f before previous scene at %.3f", sc.Number, *sc.StartSeconds, prev)
		}
		prev = *sc.StartSeconds
	}
	return nil
}

// TimingMismatchError reports a voiceover whose segment count differs from
// the scene count.
type TimingMismatchError struct {
	Scenes   int
	Segments int
}

func (e *TimingMismatchError) Error() string {
	return fmt.Sprintf("voiceover returned %d segments for %d scenes", e.Segments, e.Scenes)
}
