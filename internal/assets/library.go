package assets

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/webp"

	"duet/internal/services"
)

// Kind names an asset category directory.
type Kind string

const (
	KindCharacter  Kind = "characters"
	KindBackground Kind = "backgrounds"
	KindMusic      Kind = "music"
)

// MaxFileSize bounds any single asset file.
const MaxFileSize int64 = 50 << 20

var (
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}
	videoExtensions = []string{".mp4", ".mov", ".webm", ".mkv"}
	audioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg"}
)

// Library resolves references inside one assets directory.
type Library struct {
	root string
}

// New returns a Library rooted at dir.
func New(dir string) *Library {
	return &Library{root: dir}
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Dir returns the directory holding assets of kind.
func (l *Library) Dir(kind Kind) string {
	return filepath.Join(l.root, string(kind))
}

// EnsureLayout creates the category directories.
func (l *Library) EnsureLayout() error {
	for _, kind := range []Kind{KindCharacter, KindBackground, KindMusic} {
		if err := os.MkdirAll(l.Dir(kind), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", kind, err)
		}
	}
	return nil
}

// Media is a validated asset file.
type Media struct {
	Path  string
	Still bool
}

// Background resolves a background reference to an image or video file.
func (l *Library) Background(ref string) (Media, error) {
	path, err := l.locate(KindBackground, ref)
	if err != nil {
		return Media{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(imageExtensions, ext):
		if err := checkImage(path); err != nil {
			return Media{}, notFound("background", ref, err)
		}
		return Media{Path: path, Still: true}, nil
	case slices.Contains(videoExtensions, ext):
		return Media{Path: path}, nil
	default:
		return Media{}, notFound("background", ref, fmt.Errorf("unsupported extension %q", ext))
	}
}

// Music resolves a music reference to an audio file.
func (l *Library) Music(ref string) (string, error) {
	path, err := l.locate(KindMusic, ref)
	if err != nil {
		return "", err
	}
	if ext := strings.ToLower(filepath.Ext(path)); !slices.Contains(audioExtensions, ext) {
		return "", notFound("music", ref, fmt.Errorf("unsupported extension %q", ext))
	}
	return path, nil
}

// List returns the references available for kind, sorted.
func (l *Library) List(kind Kind) ([]string, error) {
	dir := l.Dir(kind)
	if kind == KindCharacter {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var refs []string
		for _, entry := range entries {
			if entry.IsDir() {
				refs = append(refs, entry.Name())
			}
		}
		return refs, nil
	}

	allowed := audioExtensions
	if kind == KindBackground {
		allowed = append(slices.Clone(imageExtensions), videoExtensions...)
	}
	var refs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !slices.Contains(allowed, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		refs = append(refs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(refs)
	return refs, nil
}

// locate maps ref onto a regular file. Relative refs must stay inside the
// kind directory; absolute refs are used as given.
func (l *Library) locate(kind Kind, ref string) (string, error) {
	label := strings.TrimSuffix(string(kind), "s")
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", notFound(label, ref, errors.New("reference is empty"))
	}
	var path string
	if filepath.IsAbs(ref) {
		path = filepath.Clean(ref)
	} else {
		cleaned := filepath.Clean(filepath.FromSlash(ref))
		if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return "", notFound(label, ref, errors.New("reference escapes the asset library"))
		}
		path = filepath.Join(l.Dir(kind), cleaned)
	}
	if err := checkFile(path); err != nil {
		return "", notFound(label, ref, err)
	}
	return path, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	if info.Size() == 0 {
		return errors.New("file is empty")
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("file exceeds %d MB", MaxFileSize>>20)
	}
	return nil
}

// checkImage decodes only the image header so corrupt files fail before
// ffmpeg sees them.
func checkImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("image has no pixels")
	}
	return nil
}

func notFound(label, ref string, err error) error {
	return services.Wrap(services.ErrAssetNotFound, "assets", "resolve "+label, fmt.Sprintf("%s %q unavailable", label, ref), err)
}
