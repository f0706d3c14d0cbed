package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"duet/internal/filtergraph"
	"duet/internal/logging"
	"duet/internal/notifications"
	"duet/internal/project"
	"duet/internal/scene"
	"duet/internal/services"
)

// OutputFileName is the rendered video inside a project directory.
const OutputFileName = "output.mp4"

// Render composes the final video for an AUDIO_READY project. The project is
// claimed with a compare-and-set to RENDERING first; a project that is
// already rendering is rejected. Cancelling ctx fails the project with the
// cancelled error kind.
func (m *Manager) Render(ctx context.Context, id int64) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageRender)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, "a render is already in progress for this project"), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	switch p.Status {
	case project.StatusAudioReady:
	case project.StatusRendering:
		return m.rejected(logger, p, "a render is already in progress for this project"), nil
	default:
		return m.rejected(logger, p, fmt.Sprintf("project is %s; only audio-ready projects can be rendered", p.Status.Label())), nil
	}

	claimed, err := m.store.Transition(ctx, id, project.StatusAudioReady, project.StatusRendering)
	if err != nil {
		return Outcome{}, err
	}
	if !claimed {
		return m.rejected(logger, p, "project changed state before the render started"), nil
	}
	from := p.Status
	p.Status = project.StatusRendering
	m.started(logger, from, project.StatusRendering)

	cmd, err := m.compile(logger, p)
	if err != nil {
		return m.fail(ctx, logger, p, project.StatusRendering, err)
	}
	result, err := m.executor.Run(ctx, cmd, m.OutputPath(id))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, services.ErrCancelled) {
			err = services.Wrap(services.ErrCancelled, StageRender, "run", "render cancelled", err)
		}
		return m.fail(ctx, logger, p, project.StatusRendering, err)
	}

	duration := result.DurationSeconds
	p.OutputPath = result.OutputPath
	p.DurationSeconds = &duration
	p.Status = project.StatusCompleted
	p.ClearFailure()
	if err := m.store.Update(context.WithoutCancel(ctx), p); err != nil {
		return Outcome{}, err
	}
	logger.Info("render finished",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("output", result.OutputPath),
		logging.Float64("duration_seconds", duration),
		logging.Duration("elapsed", result.Elapsed),
	)
	m.notify(ctx, logger, notifications.EventVideoReady, notifications.Payload{
		"projectID":       p.ID,
		"topic":           p.Topic,
		"durationSeconds": duration,
		"output":          result.OutputPath,
	})
	return m.completed(logger, p, project.StatusRendering), nil
}

// Plan compiles the render command for a project that has timed scenes
// without changing its state.
func (m *Manager) Plan(ctx context.Context, id int64) (*filtergraph.Command, error) {
	ctx, logger := m.begin(ctx, id, StageRender)
	p, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.VoiceoverPath == "" || len(p.Scenes) == 0 {
		return nil, fmt.Errorf("project %d has no voiceover yet (status %s)", id, p.Status.Label())
	}
	return m.compile(logger, p)
}

// OutputPath returns where a project's video is written.
func (m *Manager) OutputPath(id int64) string {
	return filepath.Join(m.cfg.ProjectDir(id), OutputFileName)
}

// RetryRender returns a FAILED project that still has its voiceover and
// scenes to AUDIO_READY.
func (m *Manager) RetryRender(ctx context.Context, id int64) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageRender)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.load(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.Status != project.StatusFailed {
		return m.rejected(logger, p, fmt.Sprintf("project is %s; only failed projects can retry a render", p.Status.Label())), nil
	}
	if !p.CanRetryRender() {
		return m.rejected(logger, p, "project has no voiceover to render; run regenerate instead"), nil
	}

	m.started(logger, p.Status, project.StatusAudioReady)
	from := p.Status
	p.Status = project.StatusAudioReady
	p.OutputPath = ""
	p.DurationSeconds = nil
	p.ClearFailure()
	if err := m.store.Update(ctx, p); err != nil {
		return Outcome{}, err
	}
	return m.completed(logger, p, from), nil
}

// compile resolves assets for p and builds its command. A missing background
// is fatal; missing music or characters degrade the render.
func (m *Manager) compile(logger *slog.Logger, p *project.Project) (*filtergraph.Command, error) {
	if p.BackgroundRef == "" {
		return nil, services.Wrap(services.ErrAssetNotFound, StageRender, "resolve background", "project has no background", nil)
	}
	bg, err := m.assets.Background(p.BackgroundRef)
	if err != nil {
		return nil, err
	}

	var music string
	if p.MusicRef != "" {
		music, err = m.assets.Music(p.MusicRef)
		if err != nil {
			logging.WarnWithContext(logger, "music unavailable, rendering without it", "music_missing",
				logging.String("ref", p.MusicRef),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "add the track to the music library"),
			)
			music = ""
		}
	}

	poses := make(map[scene.Role]filtergraph.PoseSet, len(scene.Roles))
	for role, ref := range map[scene.Role]string{
		scene.RoleQuestioner: p.QuestionerRef,
		scene.RoleExplainer:  p.ExplainerRef,
	} {
		char, err := m.assets.Character(ref)
		if err != nil {
			logging.WarnWithContext(logger, "character unavailable, rendering captions only", "character_missing",
				logging.String("role", string(role)),
				logging.String("ref", ref),
				logging.Error(err),
			)
			continue
		}
		poses[role] = filtergraph.PoseSet(char.Poses)
	}

	var voiceoverSeconds float64
	for _, sc := range p.Scenes {
		voiceoverSeconds = max(voiceoverSeconds, sc.End())
	}
	return m.compiler.Compile(p.Scenes, filtergraph.Assets{
		Background:       filtergraph.Media{Path: bg.Path, Still: bg.Still},
		Voiceover:        p.VoiceoverPath,
		VoiceoverSeconds: voiceoverSeconds,
		Music:            music,
		Poses:            poses,
	})
}
