package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"duet/internal/logging"
	"duet/internal/project"
	"duet/internal/scene"
	"duet/internal/services"
)

// Synthesize produces the voiceover for an APPROVED project and attaches one
// timed scene per script line. A segment count that does not match the
// script fails the project.
func (m *Manager) Synthesize(ctx context.Context, id int64) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageVoiceover)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.Status != project.StatusApproved {
		return m.rejected(logger, p, fmt.Sprintf("project is %s; approve the script before synthesizing", p.Status.Label())), nil
	}
	if p.Script.Empty() {
		return m.rejected(logger, p, "script is empty; regenerate first"), nil
	}

	from := p.Status
	m.started(logger, from, project.StatusAudioReady)
	vo, err := m.voice.Synthesize(ctx, scene.VoiceoverRequest{
		Script:    *p.Script,
		Voices:    m.voicesFor(logger, p),
		OutputDir: filepath.Join(m.cfg.ProjectDir(p.ID), "voiceover"),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("voiceover cancelled", logging.String(logging.FieldEventType, "transition_cancelled"))
			return Outcome{Project: p, Reason: "cancelled"}, ctxErr
		}
		return m.fail(ctx, logger, p, from, err)
	}

	scenes, err := scene.ApplyTimings(scene.FromScript(*p.Script), vo.Segments)
	if err != nil {
		return m.fail(ctx, logger, p, from, services.Wrap(services.ErrSynthesis, StageVoiceover, "apply timings", "", err))
	}
	if p.BackgroundRef != "" {
		for i := range scenes {
			ref := p.BackgroundRef
			scenes[i].BackgroundRef = &ref
		}
	}

	p.Scenes = scenes
	p.VoiceoverPath = vo.Path
	p.Status = project.StatusAudioReady
	p.ClearFailure()
	if err := m.store.Update(ctx, p); err != nil {
		return Outcome{}, err
	}
	logger.Info("voiceover attached",
		logging.String(logging.FieldEventType, "voiceover_ready"),
		logging.Int("scenes", len(scenes)),
		logging.Float64("voiceover_seconds", vo.TotalSeconds),
	)
	return m.completed(logger, p, from), nil
}

// voicesFor starts from the configured voices and lets a character manifest
// override its role's voice.
func (m *Manager) voicesFor(logger *slog.Logger, p *project.Project) scene.Voices {
	voices := scene.Voices{
		Questioner: m.cfg.Voiceover.QuestionerVoiceID,
		Explainer:  m.cfg.Voiceover.ExplainerVoiceID,
	}
	if char, err := m.assets.Character(p.QuestionerRef); err == nil && char.VoiceID != "" {
		voices.Questioner = char.VoiceID
	}
	if char, err := m.assets.Character(p.ExplainerRef); err == nil && char.VoiceID != "" {
		voices.Explainer = char.VoiceID
	}
	logger.Debug("voices selected",
		logging.String("questioner_voice", voices.Questioner),
		logging.String("explainer_voice", voices.Explainer),
	)
	return voices
}
