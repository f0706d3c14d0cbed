package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"duet/internal/fileutil"
	"duet/internal/textutil"
)

// ImportRequest describes a local file to copy into the library.
type ImportRequest struct {
	Kind   Kind
	Source string
	// Name is the character ref for KindCharacter and the file stem otherwise.
	Name string
	// Pose names the pose image for KindCharacter.
	Pose string
	// Style optionally groups backgrounds and music, defaulting to "general".
	Style string
}

// Import validates req.Source and copies it into the library, returning the
// reference that resolves to the copy.
func (l *Library) Import(req ImportRequest) (string, error) {
	if err := checkFile(req.Source); err != nil {
		return "", fmt.Errorf("source %s: %w", req.Source, err)
	}
	ext := strings.ToLower(filepath.Ext(req.Source))

	var (
		dir string
		ref string
	)
	switch req.Kind {
	case KindCharacter:
		if !slices.Contains(imageExtensions, ext) {
			return "", fmt.Errorf("invalid image type %q", ext)
		}
		if err := checkImage(req.Source); err != nil {
			return "", err
		}
		ref = textutil.SanitizeToken(req.Name)
		pose := textutil.SanitizeToken(req.Pose)
		if strings.TrimSpace(req.Pose) == "" {
			pose = "neutral"
		}
		dir = filepath.Join(l.Dir(KindCharacter), ref)
		if err := l.copyInto(req.Source, filepath.Join(dir, pose+ext)); err != nil {
			return "", err
		}
		return ref, nil
	case KindBackground:
		if !slices.Contains(imageExtensions, ext) && !slices.Contains(videoExtensions, ext) {
			return "", fmt.Errorf("invalid background type %q", ext)
		}
		if slices.Contains(imageExtensions, ext) {
			if err := checkImage(req.Source); err != nil {
				return "", err
			}
		}
	case KindMusic:
		if !slices.Contains(audioExtensions, ext) {
			return "", fmt.Errorf("invalid audio type %q", ext)
		}
	default:
		return "", fmt.Errorf("unknown asset kind %q", req.Kind)
	}

	style := textutil.SanitizeToken(req.Style)
	if strings.TrimSpace(req.Style) == "" {
		style = "general"
	}
	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(req.Source), filepath.Ext(req.Source))
	}
	ref = style + "/" + textutil.SanitizeToken(name) + ext
	if err := l.copyInto(req.Source, filepath.Join(l.Dir(req.Kind), filepath.FromSlash(ref))); err != nil {
		return "", err
	}
	return ref, nil
}

func (l *Library) copyInto(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}
	if err := fileutil.CopyNew(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists", dst)
		}
		return fmt.Errorf("copy asset: %w", err)
	}
	return nil
}
