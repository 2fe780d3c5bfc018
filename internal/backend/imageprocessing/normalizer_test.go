package imageprocessing

import (
	"bytes"
	"image/jpeg"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="10" viewBox="0 0 20 10">
<rect x="0" y="0" width="10" height="10" fill="#ff0000"/>
</svg>`

func newTestNormalizer(t *testing.T, maxSize int, debug bool, rotations mapRotationStore) (*Normalizer, string) {
	t.Helper()
	tempDir := t.TempDir()
	normalizer, err := NewNormalizer(maxSize, debug, tempDir, rotations)
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}
	return normalizer, tempDir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list %s: %v", dir, err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestNewNormalizer_InvalidMaxSize(t *testing.T) {
	if _, err := NewNormalizer(0, false, "", nil); err == nil {
		t.Error("Expected error for zero maxSize")
	}
}

func TestNormalize_IdentityKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "small.png", 16, 8)
	before, _ := os.ReadFile(path)
	normalizer, tempDir := newTestNormalizer(t, 1280, true, nil)

	normalized, err := normalizer.Normalize(path)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if normalized.Path != path || normalized.Transient || normalized.Modified() {
		t.Errorf("Expected original path without artifacts, got %+v", normalized)
	}
	if names := listDir(t, dir); !reflect.DeepEqual(names, []string{"small.png"}) {
		t.Errorf("Expected no new files next to the source, got %v", names)
	}
	if names := listDir(t, tempDir); len(names) != 0 {
		t.Errorf("Expected no temporary files, got %v", names)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("Expected source file to be unchanged")
	}
}

func TestNormalize_ScalesIntoTemporaryFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "large.png", 40, 20)
	normalizer, tempDir := newTestNormalizer(t, 10, false, nil)

	normalized, err := normalizer.Normalize(path)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !normalized.Transient {
		t.Error("Expected a transient image outside debug mode")
	}
	if filepath.Dir(normalized.Path) != tempDir {
		t.Errorf("Expected temporary file in %s, got %s", tempDir, normalized.Path)
	}
	base := filepath.Base(normalized.Path)
	if !strings.HasPrefix(base, "large_temp") || filepath.Ext(base) != ".png" {
		t.Errorf("unexpected temporary name %s", base)
	}

	width, height, format := readImageSize(t, normalized.Path)
	if width != 10 || height != 5 || format != "png" {
		t.Errorf("Expected 10x5 png, got %dx%d %s", width, height, format)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("Expected nothing written next to the source, got %v", names)
	}
}

func TestNormalize_DebugNamesCarrySuffixes(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		rotation   int
		wantName   string
		wantWidth  int
		wantHeight int
	}{
		{"scaled", 40, 20, 0, "page_resized.png", 10, 5},
		{"scaled and rotated", 40, 20, 90, "page_resized_rotated90.png", 5, 10},
		{"rotated only", 6, 4, 270, "page_rotated270.png", 4, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeTestPNG(t, dir, "page.png", tt.width, tt.height)
			normalizer, _ := newTestNormalizer(t, 10, true, mapRotationStore{"page.png": tt.rotation})

			normalized, err := normalizer.Normalize(path)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if normalized.Transient {
				t.Error("Expected debug artifact to be kept")
			}
			if normalized.Path != filepath.Join(dir, tt.wantName) {
				t.Errorf("Expected %s, got %s", tt.wantName, normalized.Path)
			}
			width, height, _ := readImageSize(t, normalized.Path)
			if width != tt.wantWidth || height != tt.wantHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, width, height)
			}
		})
	}
}

func TestNormalize_KeepsJPEGFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, newTestImage(40, 80), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write jpeg: %v", err)
	}
	normalizer, _ := newTestNormalizer(t, 20, true, nil)

	normalized, err := normalizer.Normalize(path)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	width, height, format := readImageSize(t, normalized.Path)
	if format != "jpeg" || width != 10 || height != 20 {
		t.Errorf("Expected 10x20 jpeg, got %dx%d %s", width, height, format)
	}
}

func TestNormalize_UnencodableExtensionWritesJPEG(t *testing.T) {
	dir := t.TempDir()
	// PNG bytes behind a .webp name decode through content sniffing
	pngPath := writeTestPNG(t, dir, "source.png", 40, 20)
	path := filepath.Join(dir, "page.webp")
	if err := os.Rename(pngPath, path); err != nil {
		t.Fatalf("failed to rename: %v", err)
	}

	debugNormalizer, _ := newTestNormalizer(t, 10, true, nil)
	normalized, err := debugNormalizer.Normalize(path)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if normalized.Path != filepath.Join(dir, "page_resized.jpg") {
		t.Errorf("expected .jpg debug copy, got %s", normalized.Path)
	}
	if _, _, format := readImageSize(t, normalized.Path); format != "jpeg" {
		t.Errorf("expected jpeg content, got %s", format)
	}

	tempNormalizer, _ := newTestNormalizer(t, 10, false, nil)
	transient, err := tempNormalizer.Normalize(path)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if filepath.Ext(transient.Path) != ".jpg" {
		t.Errorf("expected .jpg temporary file, got %s", transient.Path)
	}
}

func TestNormalize_RasterizesSVG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drawing.svg")
	if err := os.WriteFile(path, []byte(testSVG), 0644); err != nil {
		t.Fatalf("failed to write svg: %v", err)
	}
	normalizer, _ := newTestNormalizer(t, 1280, true, nil)

	normalized, err := normalizer.Normalize(path)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if normalized.Path != filepath.Join(dir, "drawing_rasterized.png") {
		t.Errorf("unexpected rasterized path %s", normalized.Path)
	}
	width, height, format := readImageSize(t, normalized.Path)
	if width != 20 || height != 10 || format != "png" {
		t.Errorf("Expected 20x10 png, got %dx%d %s", width, height, format)
	}
}

func TestNormalize_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	normalizer, tempDir := newTestNormalizer(t, 10, false, nil)

	for _, path := range []string{corrupt, filepath.Join(dir, "missing.png")} {
		if _, err := normalizer.Normalize(path); err == nil {
			t.Errorf("Expected error for %s", path)
		}
	}
	if names := listDir(t, tempDir); len(names) != 0 {
		t.Errorf("Expected no temporary files after failures, got %v", names)
	}
}

func TestNormalize_UsesRotationStorePerPath(t *testing.T) {
	dir := t.TempDir()
	rotated := writeTestPNG(t, dir, "a.png", 4, 2)
	plain := writeTestPNG(t, dir, "b.png", 4, 2)
	normalizer, _ := newTestNormalizer(t, 1280, false, mapRotationStore{"a.png": 90})

	first, err := normalizer.Normalize(rotated)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	defer func() {
		_ = os.Remove(first.Path)
	}()
	if !reflect.DeepEqual(first.Applied, []string{"_rotated90"}) {
		t.Errorf("Expected rotation to be applied, got %v", first.Applied)
	}

	second, err := normalizer.Normalize(plain)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if second.Path != plain {
		t.Errorf("Expected unrotated image to keep its path, got %s", second.Path)
	}
}
