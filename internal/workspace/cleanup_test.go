package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"duet/internal/logging"
)

func makeDir(t *testing.T, root, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}
	return dir
}

func TestParseProjectDir(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		ok   bool
	}{
		{"project-1", 1, true},
		{"project-42", 42, true},
		{"project-0", 0, false},
		{"project-abc", 0, false},
		{"assets", 0, false},
		{"project-", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseProjectDir(tt.name)
		if id != tt.id || ok != tt.ok {
			t.Errorf("ParseProjectDir(%q) = %d, %v; want %d, %v", tt.name, id, ok, tt.id, tt.ok)
		}
	}
}

func TestListDirectories(t *testing.T) {
	root := t.TempDir()
	makeDir(t, root, "project-1", map[string]string{"output.mp4": "12345"})
	makeDir(t, root, "project-2", nil)
	makeDir(t, root, "notes", nil)
	if err := os.WriteFile(filepath.Join(root, "duet.db"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 project dirs, got %+v", dirs)
	}
	sizes := map[int64]int64{}
	for _, d := range dirs {
		sizes[d.ProjectID] = d.Size
	}
	if sizes[1] != 5 || sizes[2] != 0 {
		t.Fatalf("unexpected sizes %v", sizes)
	}

	for _, dir := range []string{"", "   ", filepath.Join(root, "missing")} {
		got, err := ListDirectories(dir)
		if err != nil || len(got) != 0 {
			t.Errorf("ListDirectories(%q) = %v, %v", dir, got, err)
		}
	}
}

func TestCleanOrphaned(t *testing.T) {
	root := t.TempDir()
	kept := makeDir(t, root, "project-1", map[string]string{"output.mp4": "video"})
	orphan := makeDir(t, root, "project-7", map[string]string{"voiceover.mp3": "abc"})
	known := map[int64]struct{}{1: {}}

	dry := CleanOrphaned(context.Background(), root, known, true, logging.NewNop())
	if len(dry.Removed) != 1 || dry.Removed[0] != orphan || dry.Freed != 3 {
		t.Fatalf("unexpected dry run result %+v", dry)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Fatal("dry run removed the directory")
	}

	result := CleanOrphaned(context.Background(), root, known, false, logging.NewNop())
	if len(result.Removed) != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphaned directory should be gone")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatal("known project directory should remain")
	}
}

func TestCleanPartialRenders(t *testing.T) {
	root := t.TempDir()
	dir := makeDir(t, root, "project-3", map[string]string{
		"output.partial.mp4": "half",
		"output.mp4":         "whole",
	})
	fresh := makeDir(t, root, "project-4", map[string]string{"output.partial.mp4": "busy"})

	old := time.Now().Add(-2 * time.Hour)
	stale := filepath.Join(dir, "output.partial.mp4")
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanPartialRenders(context.Background(), root, time.Hour, false, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != stale || result.Freed != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale partial should be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "output.mp4")); err != nil {
		t.Fatal("finished output should remain")
	}
	if _, err := os.Stat(filepath.Join(fresh, "output.partial.mp4")); err != nil {
		t.Fatal("recent partial should remain")
	}
}
