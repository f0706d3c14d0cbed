package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"duet/internal/assets"
	"duet/internal/config"
	"duet/internal/filtergraph"
	"duet/internal/logging"
	"duet/internal/notifications"
	"duet/internal/project"
	"duet/internal/render"
	"duet/internal/scene"
	"duet/internal/scriptgen"
	"duet/internal/services"
	"duet/internal/voiceover"
)

// Lifecycle stage names stamped on context and logs.
const (
	StageScript    = "script"
	StageReview    = "review"
	StageVoiceover = "voiceover"
	StageRender    = "render"
	StageDelete    = "delete"
)

// ErrNotFound reports an unknown project id.
var ErrNotFound = errors.New("project not found")

const reasonBusy = "another operation is already running for this project"

// ScriptAdapter writes the dialogue for a project.
type ScriptAdapter interface {
	Generate(ctx context.Context, req scene.ScriptRequest) (scene.Script, error)
}

// VoiceoverAdapter synthesizes one segment per script line plus the
// combined narration.
type VoiceoverAdapter interface {
	Synthesize(ctx context.Context, req scene.VoiceoverRequest) (scene.Voiceover, error)
}

// AssetResolver turns asset references into validated files.
type AssetResolver interface {
	Character(ref string) (*assets.Character, error)
	Background(ref string) (assets.Media, error)
	Music(ref string) (string, error)
}

// Executor runs a compiled command into outputPath.
type Executor interface {
	Run(ctx context.Context, cmd *filtergraph.Command, outputPath string) (render.Result, error)
}

// Deps are the collaborators a Manager drives. Notifier is optional.
type Deps struct {
	Store     *project.Store
	Script    ScriptAdapter
	Voiceover VoiceoverAdapter
	Assets    AssetResolver
	Executor  Executor
	Notifier  notifications.Service
	Logger    *slog.Logger
}

// Outcome is the result of a lifecycle action. Applied is false when a guard
// refused the action; Reason then says why. A project that moved to FAILED
// is Applied with Reason carrying the stored error message.
type Outcome struct {
	Project *project.Project
	Applied bool
	Reason  string
}

// Failed reports whether the action left the project FAILED.
func (o Outcome) Failed() bool {
	return o.Project != nil && o.Project.Status == project.StatusFailed
}

// Manager coordinates lifecycle transitions.
type Manager struct {
	cfg      *config.Config
	store    *project.Store
	script   ScriptAdapter
	voice    VoiceoverAdapter
	assets   AssetResolver
	executor Executor
	notifier notifications.Service
	compiler *filtergraph.Compiler
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New constructs a Manager from explicit collaborators.
func New(cfg *config.Config, deps Deps) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Script == nil:
		return nil, errors.New("pipeline: script adapter is required")
	case deps.Voiceover == nil:
		return nil, errors.New("pipeline: voiceover adapter is required")
	case deps.Assets == nil:
		return nil, errors.New("pipeline: asset resolver is required")
	case deps.Executor == nil:
		return nil, errors.New("pipeline: executor is required")
	}
	compiler, err := CompilerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		store:    deps.Store,
		script:   deps.Script,
		voice:    deps.Voiceover,
		assets:   deps.Assets,
		executor: deps.Executor,
		notifier: deps.Notifier,
		compiler: compiler,
		logger:   logging.NewComponentLogger(deps.Logger, "pipeline"),
		locks:    make(map[int64]*sync.Mutex),
	}, nil
}

// NewFromConfig wires the production adapters for cfg.
func NewFromConfig(cfg *config.Config, store *project.Store, logger *slog.Logger) (*Manager, error) {
	return New(cfg, Deps{
		Store:     store,
		Script:    scriptgen.NewFromConfig(cfg, logger),
		Voiceover: voiceover.NewFromConfig(cfg, logger),
		Assets:    assets.New(cfg.Paths.AssetsDir),
		Executor:  render.NewFromConfig(cfg, logger),
		Notifier:  notifications.NewService(cfg),
		Logger:    logger,
	})
}

// CompilerFromConfig builds the filter graph compiler for the configured
// canvas and encoding.
func CompilerFromConfig(cfg *config.Config) (*filtergraph.Compiler, error) {
	canvas := filtergraph.Canvas{
		Width:           cfg.Canvas.Width,
		Height:          cfg.Canvas.Height,
		FPS:             cfg.Canvas.FPS,
		LeftXOffset:     cfg.Canvas.LeftXOffset,
		RightXOffset:    cfg.Canvas.RightXOffset,
		FontFile:        cfg.Canvas.FontFile,
		CaptionFontSize: cfg.Canvas.CaptionFontSize,
		LabelFontSize:   cfg.Canvas.LabelFontSize,
		CaptionBottom:   cfg.Canvas.CaptionBottom,
		LabelBottom:     cfg.Canvas.LabelBottom,
		FadeSeconds:     cfg.Canvas.FadeSeconds,
		WrapColumns:     cfg.Canvas.WrapColumns,
		CharacterHeight: cfg.Canvas.CharacterHeight,
		CharacterBottom: cfg.Canvas.CharacterBottom,
	}
	encoding := filtergraph.Encoding{
		VideoCodec:   cfg.Encoding.VideoCodec,
		Preset:       cfg.Encoding.Preset,
		CRF:          cfg.Encoding.CRF,
		PixelFormat:  cfg.Encoding.PixelFormat,
		AudioCodec:   cfg.Encoding.AudioCodec,
		AudioBitrate: cfg.Encoding.AudioBitrate,
		MusicVolume:  cfg.Encoding.MusicVolume,
	}
	compiler, err := filtergraph.New(canvas, encoding)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageRender, "compiler", "invalid canvas or encoding", err)
	}
	return compiler, nil
}

// Get returns a project with its scenes.
func (m *Manager) Get(ctx context.Context, id int64) (*project.Project, error) {
	p, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

// List returns projects newest first.
func (m *Manager) List(ctx context.Context, opts project.ListOptions) ([]*project.Project, error) {
	return m.store.List(ctx, opts)
}

// Counts returns how many projects sit in each status.
func (m *Manager) Counts(ctx context.Context) (map[project.Status]int, error) {
	return m.store.Counts(ctx)
}

// Delete removes a project, its scenes, and its working directory. A project
// with an operation in flight is not deleted.
func (m *Manager) Delete(ctx context.Context, id int64) (Outcome, error) {
	ctx, logger := m.begin(ctx, id, StageDelete)
	unlock, ok := m.tryLock(id)
	if !ok {
		return m.rejected(logger, nil, reasonBusy), nil
	}
	defer unlock()

	p, err := m.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	removed, err := m.store.Delete(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if !removed {
		return Outcome{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	m.forgetLock(id)

	dir := m.cfg.ProjectDir(id)
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logger, "project directory not removed", "cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
		)
	}
	logger.Info("project deleted",
		logging.String(logging.FieldEventType, "project_deleted"),
		logging.String("status", string(p.Status)),
	)
	return Outcome{Project: p, Applied: true}, nil
}

// RecoverInterrupted fails projects left RENDERING by a previous process so
// they can be retried.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int64, error) {
	n, err := m.store.FailInterrupted(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.WarnWithContext(m.logger, "interrupted renders marked failed", "render_interrupted",
			logging.Int64("count", n),
			logging.String(logging.FieldErrorHint, "run retry-render on the affected projects"),
		)
	}
	return n, nil
}

// begin stamps a fresh correlation id plus the project and stage on ctx.
func (m *Manager) begin(ctx context.Context, id int64, stage string) (context.Context, *slog.Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())
	if id > 0 {
		ctx = services.WithProjectID(ctx, id)
	}
	ctx = services.WithStage(ctx, stage)
	return ctx, logging.WithContext(ctx, m.logger)
}

func (m *Manager) tryLock(id int64) (func(), bool) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}

func (m *Manager) forgetLock(id int64) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}
