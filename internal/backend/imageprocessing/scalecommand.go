package imageprocessing

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
)

// ScaleCommand downsamples an image so its longest side fits into maxSize.
// Images that already fit are never upscaled.
type ScaleCommand struct {
	name    string
	maxSize int
}

// NewScaleCommand creates a new scale command bounded by maxSize pixels
func NewScaleCommand(maxSize int) (*ScaleCommand, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be positive, got %d", maxSize)
	}
	return &ScaleCommand{
		name:    "ScaleCommand",
		maxSize: maxSize,
	}, nil
}

// Name returns the command name
func (c *ScaleCommand) Name() string {
	return c.name
}

// Suffix returns the debug file suffix
func (c *ScaleCommand) Suffix() string {
	return "_resized"
}

// GetMaxSize returns the configured bound
func (c *ScaleCommand) GetMaxSize() int {
	return c.maxSize
}

// Execute scales the image down while preserving aspect ratio
func (c *ScaleCommand) Execute(img image.Image) (image.Image, bool, error) {
	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()
	if originalWidth <= 0 || originalHeight <= 0 {
		return nil, false, fmt.Errorf("image has empty bounds %dx%d", originalWidth, originalHeight)
	}

	scaledWidth, scaledHeight, ok := computeBoundedDimensions(originalWidth, originalHeight, c.maxSize)
	if !ok {
		slog.Debug("ScaleCommand: image fits into bound; skipping scaling",
			"width", originalWidth,
			"height", originalHeight,
			"max_size", c.maxSize)
		return img, false, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, scaledWidth, scaledHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	slog.Info("ScaleCommand: resized image",
		"original_width", originalWidth,
		"original_height", originalHeight,
		"scaled_width", scaledWidth,
		"scaled_height", scaledHeight)

	return dst, true, nil
}

// computeBoundedDimensions applies ratio = maxSize / max(w, h). When ratio < 1 both
// sides are scaled and truncated toward zero; the longest side lands exactly on maxSize.
func computeBoundedDimensions(width, height, maxSize int) (int, int, bool) {
	longest := max(width, height)
	ratio := float64(maxSize) / float64(longest)
	if ratio >= 1 {
		return width, height, false
	}

	scaledWidth := int(float64(width) * ratio)
	scaledHeight := int(float64(height) * ratio)
	if width == longest {
		scaledWidth = maxSize
	}
	if height == longest {
		scaledHeight = maxSize
	}
	return max(scaledWidth, 1), max(scaledHeight, 1), true
}
