package imageprocessing

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/goclerk/internal/backend/annotation"
)

const rasterizedSuffix = "_rasterized"

// NormalizedImage points at the image that should be sent for inference
type NormalizedImage struct {
	// Path is either the source path (nothing applied) or a newly written file.
	Path string
	// Transient marks a temporary file the caller must remove after use.
	Transient bool
	// Applied lists the suffixes of the transforms that changed the image.
	Applied []string
}

// Modified reports whether a new file was written
func (n *NormalizedImage) Modified() bool {
	return len(n.Applied) > 0
}

// Normalizer bounds image size and applies stored rotation corrections
type Normalizer struct {
	maxSize   int
	debug     bool
	tempDir   string
	rotations annotation.RotationStore
}

// NewNormalizer creates a normalizer. An empty tempDir falls back to os.TempDir().
// A nil rotation store disables rotation.
func NewNormalizer(maxSize int, debug bool, tempDir string, rotations annotation.RotationStore) (*Normalizer, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be positive, got %d", maxSize)
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if rotations == nil {
		rotations = annotation.NoopRotationStore{}
	}
	return &Normalizer{
		maxSize:   maxSize,
		debug:     debug,
		tempDir:   tempDir,
		rotations: rotations,
	}, nil
}

// Normalize returns the path of an image whose longest side is at most maxSize and
// which carries any annotated rotation. The source file is never modified.
func (n *Normalizer) Normalize(path string) (*NormalizedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}

	img, fromSVG, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}

	scale, err := NewScaleCommand(n.maxSize)
	if err != nil {
		return nil, err
	}
	commands := []Command{scale}
	if degrees := n.rotations.Rotation(path); degrees != 0 {
		commands = append(commands, NewRotateCommand(degrees))
	}

	processed, applied, err := NewCommandInvoker(commands).Execute(img)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize image %s: %w", path, err)
	}

	ext := outputExtension(filepath.Ext(path))
	if fromSVG {
		applied = append([]string{rasterizedSuffix}, applied...)
		ext = ".png"
	}

	if len(applied) == 0 {
		slog.Info("Normalizer: image does not need resizing or rotation", "path", path)
		return &NormalizedImage{Path: path}, nil
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if n.debug {
		outPath := filepath.Join(filepath.Dir(path), stem+strings.Join(applied, "")+ext)
		if err := writeImageFile(outPath, processed, FormatForPath(outPath)); err != nil {
			return nil, err
		}
		slog.Info("Normalizer: saved modified image", "path", outPath, "applied", applied)
		return &NormalizedImage{Path: outPath, Applied: applied}, nil
	}

	outPath, err := writeTempImageFile(n.tempDir, stem+"_temp*"+ext, processed, FormatForPath(ext))
	if err != nil {
		return nil, err
	}
	slog.Debug("Normalizer: saved temporary image", "path", outPath, "applied", applied)
	return &NormalizedImage{Path: outPath, Transient: true, Applied: applied}, nil
}

func writeImageFile(path string, img image.Image, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return finishImageFile(file, img, format)
}

func writeTempImageFile(dir, pattern string, img image.Image, format Format) (string, error) {
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary image in %s: %w", dir, err)
	}
	if err := finishImageFile(file, img, format); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// finishImageFile encodes into an open file and closes it, removing the file on failure.
func finishImageFile(file *os.File, img image.Image, format Format) error {
	if err := encodeImage(file, img, format); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return fmt.Errorf("failed to encode %s: %w", file.Name(), err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return fmt.Errorf("failed to close %s: %w", file.Name(), err)
	}
	return nil
}
