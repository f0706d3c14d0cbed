package workspace

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"duet/internal/logging"
)

const projectDirPrefix = "project-"

// partialMarker appears in the name of a render that has not been moved
// into place yet.
const partialMarker = ".partial."

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Freed   int64
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one project working directory.
type DirInfo struct {
	ProjectID int64
	Name      string
	Path      string
	ModTime   time.Time
	Size      int64
}

// ListDirectories returns the project directories under projectsDir, ordered
// as the filesystem lists them. Entries that do not look like a project
// directory are ignored.
func ListDirectories(projectsDir string) ([]DirInfo, error) {
	projectsDir = strings.TrimSpace(projectsDir)
	if projectsDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, ok := ParseProjectDir(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(projectsDir, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			ProjectID: id,
			Name:      entry.Name(),
			Path:      dirPath,
			ModTime:   info.ModTime(),
			Size:      size,
		})
	}
	return dirs, nil
}

// ParseProjectDir extracts the project id from a directory name such as
// "project-12".
func ParseProjectDir(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, projectDirPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CleanOrphaned removes project directories whose id is not in known. With
// dryRun set nothing is removed but the result lists what would be.
func CleanOrphaned(ctx context.Context, projectsDir string, known map[int64]struct{}, dryRun bool, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	dirs, err := ListDirectories(projectsDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: projectsDir, Error: err})
		return result
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			return result
		}
		if _, ok := known[dir.ProjectID]; ok {
			continue
		}
		if dryRun {
			result.Removed = append(result.Removed, dir.Path)
			result.Freed += dir.Size
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			warnFailed(logger, dir.Path, err)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		result.Freed += dir.Size
		if logger != nil {
			logger.Info("removed orphaned project directory",
				logging.String("path", dir.Path),
				logging.Int64(logging.FieldProjectID, dir.ProjectID),
				logging.Int64("bytes", dir.Size),
				logging.String(logging.FieldEventType, "workspace_cleanup"),
			)
		}
	}
	return result
}

// CleanPartialRenders removes partial render outputs older than maxAge from
// every project directory.
func CleanPartialRenders(ctx context.Context, projectsDir string, maxAge time.Duration, dryRun bool, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	dirs, err := ListDirectories(projectsDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: projectsDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return result
		}
		entries, err := os.ReadDir(dir.Path)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.Contains(entry.Name(), partialMarker) {
				continue
			}
			path := filepath.Join(dir.Path, entry.Name())
			info, err := entry.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if !dryRun {
				if err := os.Remove(path); err != nil {
					result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
					warnFailed(logger, path, err)
					continue
				}
				if logger != nil {
					logger.Info("removed partial render",
						logging.String("path", path),
						logging.Duration("age", time.Since(info.ModTime())),
						logging.String(logging.FieldEventType, "workspace_cleanup"),
					)
				}
			}
			result.Removed = append(result.Removed, path)
			result.Freed += info.Size()
		}
	}
	return result
}

func warnFailed(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("failed to remove workspace entry",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
		logging.String(logging.FieldErrorHint, "check projects_dir permissions"),
	)
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
