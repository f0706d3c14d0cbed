package testsupport

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WritePNG writes a solid PNG of the given size, creating parent directories.
func WritePNG(t testing.TB, path string, width, height int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 0x87, G: 0xce, B: 0xeb, A: 0xff})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteCharacter lays out a character directory under assetsDir with one
// PNG per pose. The first pose is written even if poses is empty.
func WriteCharacter(t testing.TB, assetsDir, ref string, poses ...string) string {
	t.Helper()

	if len(poses) == 0 {
		poses = []string{"neutral"}
	}
	dir := filepath.Join(assetsDir, "characters", ref)
	for _, pose := range poses {
		WritePNG(t, filepath.Join(dir, pose+".png"), 4, 8)
	}
	return dir
}

// WriteBackground writes a background image under assetsDir and returns its path.
func WriteBackground(t testing.TB, assetsDir, name string) string {
	t.Helper()

	path := filepath.Join(assetsDir, "backgrounds", name)
	WritePNG(t, path, 9, 16)
	return path
}
