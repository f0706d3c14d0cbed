package testsupport

import (
	"path/filepath"
	"testing"

	"duet/internal/config"
)

// NewConfig returns the default config rooted in a fresh temp directory with
// placeholder API keys. Each edit is applied in order before returning.
func NewConfig(t testing.TB, edits ...func(*config.Config)) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ProjectsDir = filepath.Join(root, "projects")
	cfg.Paths.AssetsDir = filepath.Join(root, "assets")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.LLM.APIKey = "test"
	cfg.Voiceover.APIKey = "test"
	for _, edit := range edits {
		edit(&cfg)
	}
	return &cfg
}

// BaseDir returns the temp directory a NewConfig config is rooted in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ProjectsDir)
}
