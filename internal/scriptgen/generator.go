package scriptgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"text/template"
	"unicode/utf8"

	"duet/internal/config"
	"duet/internal/logging"
	"duet/internal/scene"
	"duet/internal/services"
	"duet/internal/services/llm"
)

const (
	// MaxDocumentContext bounds how much source text is sent with a prompt.
	MaxDocumentContext = 2000
	maxTopicDocument   = 5000
	secondsPerLine     = 3
	defaultPose        = "standing"
	scriptTemperature  = 0.7
	scriptMaxTokens    = 2000
)

var (
	scriptTmpl = template.Must(template.New("script").Parse(scriptPromptTemplate))
	topicTmpl  = template.Must(template.New("topics").Parse(topicPromptTemplate))
)

// Completer is the slice of the LLM client the generator needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Generator writes dialogue scripts with a language model.
type Generator struct {
	client Completer
	logger *slog.Logger
}

// New returns a Generator backed by client.
func New(client Completer, logger *slog.Logger) *Generator {
	return &Generator{client: client, logger: logging.NewComponentLogger(logger, "scriptgen")}
}

// NewFromConfig builds a Generator using the configured LLM endpoint.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Generator {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return New(client, logger)
}

// LineCount estimates how many lines fill target seconds.
func LineCount(targetSeconds int) int {
	return max(targetSeconds/secondsPerLine, 2)
}

// Generate writes a script for req. Every failure wraps services.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, req scene.ScriptRequest) (scene.Script, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return scene.Script{}, services.Wrap(services.ErrGeneration, "script", "validate request", "topic is empty", nil)
	}
	prompt, err := renderScriptPrompt(req)
	if err != nil {
		return scene.Script{}, services.Wrap(services.ErrGeneration, "script", "render prompt", "prompt template failed", err)
	}

	logger := logging.WithContext(ctx, g.logger)
	logger.Info("generating script",
		logging.String(logging.FieldEventType, "script_request"),
		logging.String("topic", req.Topic),
		logging.String("style", req.Style),
		logging.Int("target_seconds", req.TargetDurationSeconds),
	)
	content, err := g.client.Complete(ctx, llm.Request{
		System:      scriptSystemPrompt,
		User:        prompt,
		Temperature: scriptTemperature,
		MaxTokens:   scriptMaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return scene.Script{}, ctx.Err()
		}
		return scene.Script{}, services.Wrap(services.ErrGeneration, "script", "llm request", "language model request failed", err)
	}

	script, err := parseScript(content, req)
	if err != nil {
		return scene.Script{}, services.Wrap(services.ErrGeneration, "script", "parse response", "language model returned an unusable script", err)
	}
	logger.Info("script generated",
		logging.String(logging.FieldEventType, "script_ready"),
		logging.Int("lines", len(script.Lines)),
	)
	return script, nil
}

func renderScriptPrompt(req scene.ScriptRequest) (string, error) {
	target := req.TargetDurationSeconds
	if target <= 0 {
		target = 45
	}
	var b strings.Builder
	err := scriptTmpl.Execute(&b, map[string]any{
		"QuestionerName":  req.QuestionerName,
		"ExplainerName":   req.ExplainerName,
		"Topic":           strings.TrimSpace(req.Topic),
		"Style":           req.Style,
		"TargetDuration":  target,
		"LineCount":       LineCount(target),
		"DocumentContext": truncateRunes(strings.TrimSpace(req.DocumentContext), MaxDocumentContext),
	})
	return b.String(), err
}

type scriptPayload struct {
	Lines []struct {
		Role        string `json:"speaker_role"`
		SpeakerName string `json:"speaker_name"`
		Line        string `json:"line"`
		Pose        string `json:"pose"`
	} `json:"lines"`
	Takeaway string `json:"takeaway"`
}

func parseScript(content string, req scene.ScriptRequest) (scene.Script, error) {
	var payload scriptPayload
	if err := llm.DecodeJSON(content, &payload); err != nil {
		return scene.Script{}, err
	}
	script := scene.Script{TargetDurationSeconds: req.TargetDurationSeconds}
	for i, raw := range payload.Lines {
		text := strings.TrimSpace(raw.Line)
		if text == "" {
			continue
		}
		role, ok := scene.ParseRole(raw.Role)
		if !ok {
			return scene.Script{}, fmt.Errorf("line %d: unknown speaker role %q", i+1, raw.Role)
		}
		name := strings.TrimSpace(raw.SpeakerName)
		if name == "" {
			name = req.QuestionerName
			if role == scene.RoleExplainer {
				name = req.ExplainerName
			}
		}
		pose := strings.ToLower(strings.TrimSpace(raw.Pose))
		if pose == "" {
			pose = defaultPose
		}
		script.Lines = append(script.Lines, scene.DialogueLine{
			Role:        role,
			SpeakerName: name,
			Text:        text,
			Pose:        pose,
		})
	}
	if len(script.Lines) == 0 {
		return scene.Script{}, errors.New("script has no lines")
	}
	if takeaway := strings.TrimSpace(payload.Takeaway); takeaway != "" {
		script.Takeaway = &takeaway
	}
	return script, script.Validate()
}

// Topic is a video idea suggested from a source document.
type Topic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Style       string `json:"context_style"`
}

// ExtractTopics asks the model for up to maxTopics video ideas drawn from
// document. Styles outside the known set fall back to the default style.
func (g *Generator) ExtractTopics(ctx context.Context, document string, maxTopics int) ([]Topic, error) {
	document = strings.TrimSpace(document)
	if document == "" {
		return nil, services.Wrap(services.ErrGeneration, "topics", "validate request", "document is empty", nil)
	}
	if maxTopics <= 0 {
		maxTopics = 10
	}
	var b strings.Builder
	if err := topicTmpl.Execute(&b, map[string]any{
		"Document":  truncateRunes(document, maxTopicDocument),
		"MaxTopics": maxTopics,
		"Styles":    strings.Join(config.Styles, ", "),
	}); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "topics", "render prompt", "prompt template failed", err)
	}
	content, err := g.client.Complete(ctx, llm.Request{System: topicSystemPrompt, User: b.String(), MaxTokens: scriptMaxTokens})
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "topics", "llm request", "language model request failed", err)
	}
	var payload struct {
		Topics []Topic `json:"topics"`
	}
	if err := llm.DecodeJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "topics", "parse response", "language model returned unusable topics", err)
	}
	topics := make([]Topic, 0, len(payload.Topics))
	for _, topic := range payload.Topics {
		topic.Title = strings.TrimSpace(topic.Title)
		if topic.Title == "" {
			continue
		}
		topic.Description = strings.TrimSpace(topic.Description)
		topic.Style = strings.ToLower(strings.TrimSpace(topic.Style))
		if !slices.Contains(config.Styles, topic.Style) {
			topic.Style = "educational"
		}
		topics = append(topics, topic)
		if len(topics) == maxTopics {
			break
		}
	}
	return topics, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
