package scene

// Voices maps each role to a text-to-speech voice identifier.
type Voices struct {
	Questioner string
	Explainer  string
}

// For returns the voice for role.
func (v Voices) For(role Role) string {
	if role == RoleExplainer {
		return v.Explainer
	}
	return v.Questioner
}

// Segment is the synthesized audio for one dialogue line.
type Segment struct {
	Path            string
	StartSeconds    float64
	DurationSeconds float64
}

// Voiceover is the combined narration for a script.
type Voiceover struct {
	Path         string
	Segments     []Segment
	TotalSeconds float64
}

// VoiceoverRequest carries everything the voiceover adapter needs.
type VoiceoverRequest struct {
	Script    Script
	Voices    Voices
	OutputDir string
}

// ScriptRequest describes the dialogue a script adapter should write.
type ScriptRequest struct {
	Topic                 string
	Style                 string
	QuestionerName        string
	ExplainerName         string
	TargetDurationSeconds int
	DocumentContext       string
}
