package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"duet/internal/config"
	"duet/internal/logging"
	"duet/internal/notifications"
	"duet/internal/project"
	"duet/internal/scene"
	"duet/internal/services"
	"duet/internal/textutil"
)

// CreateRequest describes a new project. Empty fields take configured
// defaults.
type CreateRequest struct {
	Topic                 string
	Style                 string
	QuestionerRef         string
	ExplainerRef          string
	BackgroundRef         string
	MusicRef              string
	TargetDurationSeconds int
	DocumentContext       string
}

// Create stores a new DRAFT project and writes its first script. Invalid
// input and unresolvable characters are returned as errors and nothing is
// stored. A generation failure leaves the project FAILED.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Outcome, error) {
	ctx, logger := m.begin(ctx, 0, StageScript)

	req, err := m.normalizeCreate(req)
	if err != nil {
		return Outcome{}, err
	}
	questioner, err := m.assets.Character(req.QuestionerRef)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, StageScript, "resolve questioner", req.QuestionerRef, err)
	}
	explainer, err := m.assets.Character(req.ExplainerRef)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, StageScript, "resolve explainer", req.ExplainerRef, err)
	}

	p, err := m.store.Create(ctx, &project.Project{
		Topic:                 req.Topic,
		Style:                 req.Style,
		QuestionerRef:         req.QuestionerRef,
		ExplainerRef:          req.ExplainerRef,
		BackgroundRef:         req.BackgroundRef,
		MusicRef:              req.MusicRef,
		TargetDurationSeconds: req.TargetDurationSeconds,
		DocumentContext:       req.DocumentContext,
	})
	if err != nil {
		return Outcome{}, err
	}
	ctx = services.WithProjectID(ctx, p.ID)
	logger = logging.WithContext(ctx, m.logger)
	logger.Info("project created",
		logging.String(logging.FieldEventType, "project_created"),
		logging.String("topic", p.Topic),
		logging.String("style", p.Style),
	)

	unlock, ok := m.tryLock(p.ID)
	if !ok {
		return m.rejected(logger, p, reasonBusy), nil
	}
	defer unlock()
	return m.generate(ctx, logger, p, questioner.Name, explainer.Name)
}

func (m *Manager) normalizeCreate(req CreateRequest) (CreateRequest, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return req, services.Wrap(services.ErrValidation, StageScript, "create", "topic is required", nil)
	}
	req.Style = strings.ToLower(strings.TrimSpace(req.Style))
	if req.Style == "" {
		req.Style = m.cfg.Script.DefaultStyle
	}
	if !slices.Contains(config.Styles, req.Style) {
		return req, services.Wrap(services.ErrValidation, StageScript, "create",
			fmt.Sprintf("unknown style %q (expected one of %s)", req.Style, strings.Join(config.Styles, ", ")), nil)
	}
	if req.QuestionerRef = strings.TrimSpace(req.QuestionerRef); req.QuestionerRef == "" {
		req.QuestionerRef = strings.ToLower(m.cfg.Script.QuestionerName)
	}
	if req.ExplainerRef = strings.TrimSpace(req.ExplainerRef); req.ExplainerRef == "" {
		req.ExplainerRef = strings.ToLower(m.cfg.Script.ExplainerName)
	}
	if req.TargetDurationSeconds < 0 {
		return req, services.Wrap(services.ErrValidation, StageScript, "create", "target duration must not be negative", nil)
	}
	if req.TargetDurationSeconds == 0 {
		req.TargetDurationSeconds = m.cfg.Script.TargetDurationSeconds
	}
	req.BackgroundRef = strings.TrimSpace(req.BackgroundRef)
	req.MusicRef = strings.TrimSpace(req.MusicRef)
	req.DocumentContext = strings.TrimSpace(req.DocumentContext)
	return req, nil
}

// Regenerate replaces the script of a DRAFT or FAILED project and returns it
// to DRAFT. Scenes, voiceover, output, and any failure are cleared.
func (m *Manager) Regenerate(ctx context.Context, id int64) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageScript)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.Status != project.StatusDraft && p.Status != project.StatusFailed {
		return m.rejected(logger, p, fmt.Sprintf("project is %s; only draft or failed projects can be regenerated", p.Status.Label())), nil
	}

	previous := scriptText(p.Script)
	questioner, explainer := m.speakerNames(logger, p)
	out, err := m.generate(ctx, logger, p, questioner, explainer)
	if err != nil || !out.Applied || out.Failed() || previous == "" {
		return out, err
	}
	similarity := textutil.Similarity(previous, scriptText(p.Script))
	logger.Info("script regenerated",
		logging.String(logging.FieldEventType, "script_similarity"),
		logging.Float64("similarity", similarity),
		logging.Int("lines", p.LineCount()),
	)
	return out, nil
}

// generate asks the script adapter for a new script and stores it on p as a
// fresh DRAFT. Cancellation leaves p as last committed.
func (m *Manager) generate(ctx context.Context, logger *slog.Logger, p *project.Project, questioner, explainer string) (Outcome, error) {
	from := p.Status
	m.started(logger, from, project.StatusDraft)

	script, err := m.script.Generate(ctx, scene.ScriptRequest{
		Topic:                 p.Topic,
		Style:                 p.Style,
		QuestionerName:        questioner,
		ExplainerName:         explainer,
		TargetDurationSeconds: p.TargetDurationSeconds,
		DocumentContext:       p.DocumentContext,
	})
	if err == nil {
		if verr := script.Validate(); verr != nil {
			err = services.Wrap(services.ErrGeneration, StageScript, "validate", "script adapter returned an unusable script", verr)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("script generation cancelled", logging.String(logging.FieldEventType, "transition_cancelled"))
			return Outcome{Project: p, Reason: "cancelled"}, ctxErr
		}
		return m.fail(ctx, logger, p, from, err)
	}

	p.Script = &script
	p.Status = project.StatusDraft
	p.Scenes = nil
	p.VoiceoverPath = ""
	p.OutputPath = ""
	p.DurationSeconds = nil
	p.ClearFailure()
	if err := m.store.Update(ctx, p); err != nil {
		return Outcome{}, err
	}
	m.notify(ctx, logger, notifications.EventScriptReady, notifications.Payload{
		"projectID": p.ID,
		"topic":     p.Topic,
	})
	return m.completed(logger, p, from), nil
}

// Approve moves a DRAFT with a non-empty script to APPROVED. Any other state
// yields an outcome that is not applied.
func (m *Manager) Approve(ctx context.Context, id int64, reviewer string) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageReview)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.Status != project.StatusDraft {
		return m.rejected(logger, p, fmt.Sprintf("project is %s; only drafts can be approved", p.Status.Label())), nil
	}
	if p.Script.Empty() {
		return m.rejected(logger, p, "script is empty; regenerate before approving"), nil
	}

	m.started(logger, p.Status, project.StatusApproved)
	from := p.Status
	now := time.Now().UTC()
	p.Status = project.StatusApproved
	p.ReviewedBy = strings.TrimSpace(reviewer)
	p.ReviewedAt = &now
	if err := m.store.Update(ctx, p); err != nil {
		return Outcome{}, err
	}
	return m.completed(logger, p, from), nil
}

// Reject sends a DRAFT or APPROVED project back to DRAFT with review notes.
func (m *Manager) Reject(ctx context.Context, id int64, reviewer, notes string) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageReview)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.Status != project.StatusDraft && p.Status != project.StatusApproved {
		return m.rejected(logger, p, fmt.Sprintf("project is %s; only draft or approved projects can be rejected", p.Status.Label())), nil
	}

	m.started(logger, p.Status, project.StatusDraft)
	from := p.Status
	now := time.Now().UTC()
	p.Status = project.StatusDraft
	p.ReviewedBy = strings.TrimSpace(reviewer)
	p.ReviewNotes = strings.TrimSpace(notes)
	p.ReviewedAt = &now
	if err := m.store.Update(ctx, p); err != nil {
		return Outcome{}, err
	}
	return m.completed(logger, p, from), nil
}

// UpdateScript replaces the script of a DRAFT project with an edited one.
func (m *Manager) UpdateScript(ctx context.Context, id int64, script scene.Script) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageReview)
	if err := script.Validate(); err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, StageReview, "update script", "", err)
	}
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.Status != project.StatusDraft {
		return m.rejected(logger, p, fmt.Sprintf("project is %s; only draft scripts can be edited", p.Status.Label())), nil
	}
	if script.TargetDurationSeconds == 0 {
		script.TargetDurationSeconds = p.TargetDurationSeconds
	}
	p.Script = &script
	if err := m.store.Update(ctx, p); err != nil {
		return Outcome{}, err
	}
	logger.Info("script updated",
		logging.String(logging.FieldEventType, "script_updated"),
		logging.Int("lines", p.LineCount()),
	)
	return Outcome{Project: p, Applied: true}, nil
}

// speakerNames resolves display names from the character library, falling
// back to the configured names when a character has gone missing.
func (m *Manager) speakerNames(logger *slog.Logger, p *project.Project) (string, string) {
	name := func(ref, fallback string) string {
		char, err := m.assets.Character(ref)
		if err != nil {
			logging.WarnWithContext(logger, "character unavailable, using configured name", "character_missing",
				logging.String("ref", ref),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restore the character directory or create a new project"),
			)
			return fallback
		}
		return char.Name
	}
	return name(p.QuestionerRef, m.cfg.Script.QuestionerName), name(p.ExplainerRef, m.cfg.Script.ExplainerName)
}

func scriptText(script *scene.Script) string {
	if script.Empty() {
		return ""
	}
	var b strings.Builder
	for _, line := range script.Lines {
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
