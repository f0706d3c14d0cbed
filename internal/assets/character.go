package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const manifestName = "character.toml"

// Character is a resolved character directory.
type Character struct {
	Ref string
	// Name is the display name from the manifest, or the title-cased ref.
	Name string
	// VoiceID overrides the configured voice for this character's role.
	VoiceID string
	Dir     string
	// Poses maps lowercase pose names to validated image paths.
	Poses map[string]string
}

type manifest struct {
	Name    string `toml:"name"`
	VoiceID string `toml:"voice_id"`
}

// PoseNames returns the character's poses in sorted order.
func (c *Character) PoseNames() []string {
	names := make([]string, 0, len(c.Poses))
	for name := range c.Poses {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Character resolves a character reference. A character needs at least one
// decodable pose image.
func (l *Library) Character(ref string) (*Character, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.ContainsAny(ref, `/\`) || ref == "." || ref == ".." {
		return nil, notFound("character", ref, errors.New("invalid reference"))
	}
	dir := filepath.Join(l.Dir(KindCharacter), ref)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFound("character", ref, err)
	}

	char := &Character{
		Ref:   ref,
		Name:  cases.Title(language.English).String(strings.ReplaceAll(ref, "_", " ")),
		Dir:   dir,
		Poses: make(map[string]string),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if entry.Name() == manifestName {
			if err := char.applyManifest(path); err != nil {
				return nil, notFound("character", ref, err)
			}
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !slices.Contains(imageExtensions, ext) {
			continue
		}
		if checkFile(path) != nil || checkImage(path) != nil {
			continue
		}
		pose := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		char.Poses[pose] = path
	}
	if len(char.Poses) == 0 {
		return nil, notFound("character", ref, errors.New("no usable pose images"))
	}
	return char, nil
}

func (c *Character) applyManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse %s: %w", manifestName, err)
	}
	if name := strings.TrimSpace(m.Name); name != "" {
		c.Name = name
	}
	c.VoiceID = strings.TrimSpace(m.VoiceID)
	return nil
}
