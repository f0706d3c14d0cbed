package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"duet/internal/config"
	"duet/internal/logging"
	"duet/internal/pipeline"
	"duet/internal/project"
)

// workspaceLockName is held shared by running renders and taken exclusively
// to recover renders whose process has exited.
const workspaceLockName = "duet.lock"

var (
	newLogger  = logging.NewFromConfig
	newManager = pipeline.NewFromConfig
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}

// withManager opens the project store, recovers renders abandoned by an
// exited process, and hands fn a ready manager. The store is closed when fn
// returns.
func (c *commandContext) withManager(cmd *cobra.Command, fn func(*pipeline.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger()
	if err != nil {
		return err
	}
	store, err := project.Open(cfg)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}
	defer store.Close()

	mgr, err := newManager(cfg, store, logger)
	if err != nil {
		return err
	}
	if err := recoverInterrupted(cmd, cfg, mgr); err != nil {
		return err
	}
	return fn(mgr)
}

func workspaceLock(cfg *config.Config) *flock.Flock {
	return flock.New(filepath.Join(cfg.Paths.ProjectsDir, workspaceLockName))
}

// recoverInterrupted fails RENDERING projects, but only when no other duet
// process holds the workspace lock for a render of its own.
func recoverInterrupted(cmd *cobra.Command, cfg *config.Config, mgr *pipeline.Manager) error {
	lock := workspaceLock(cfg)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return nil
	}
	defer func() { _ = lock.Unlock() }()
	_, err = mgr.RecoverInterrupted(cmd.Context())
	return err
}

// holdRenderLock marks this process as rendering until the returned func runs.
func holdRenderLock(cfg *config.Config) (func(), error) {
	if err := os.MkdirAll(cfg.Paths.ProjectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	lock := workspaceLock(cfg)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

func parseProjectID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", value)
	}
	return id, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
