package imageprocessing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// newTestImage returns an image whose pixels encode their own coordinates
func newTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 50, A: 255})
		}
	}
	return img
}

func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, newTestImage(width, height)); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func readImageSize(t *testing.T, path string) (int, int, string) {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height, format
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

type mapRotationStore map[string]int

func (m mapRotationStore) Rotation(path string) int {
	return m[filepath.Base(path)]
}
