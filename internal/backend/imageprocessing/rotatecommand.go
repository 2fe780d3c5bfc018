package imageprocessing

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// RotateCommand rotates an image clockwise by a fixed number of degrees.
// The canvas grows to fit the rotated image so nothing is cropped.
type RotateCommand struct {
	name    string
	degrees int
}

// NewRotateCommand creates a rotate command for clockwise degrees
func NewRotateCommand(degrees int) *RotateCommand {
	return &RotateCommand{
		name:    "RotateCommand",
		degrees: degrees,
	}
}

// Name returns the command name
func (c *RotateCommand) Name() string {
	return c.name
}

// Suffix embeds the annotated angle, e.g. "_rotated90"
func (c *RotateCommand) Suffix() string {
	return fmt.Sprintf("_rotated%d", c.degrees)
}

// GetDegrees returns the configured clockwise angle
func (c *RotateCommand) GetDegrees() int {
	return c.degrees
}

// Execute rotates the image clockwise by the configured angle
func (c *RotateCommand) Execute(img image.Image) (image.Image, bool, error) {
	if c.degrees == 0 {
		return img, false, nil
	}

	bounds := img.Bounds()
	var rotated *image.RGBA
	switch normalizeDegrees(c.degrees) {
	case 0:
		// full turns still count as applied; the copy is pixel-identical
		rotated = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rotated, rotated.Bounds(), img, bounds.Min, draw.Src)
	case 90:
		rotated = rotateQuarter(img, 1)
	case 180:
		rotated = rotateQuarter(img, 2)
	case 270:
		rotated = rotateQuarter(img, 3)
	default:
		rotated = rotateArbitrary(img, float64(c.degrees))
	}

	slog.Info("RotateCommand: rotated image clockwise",
		"degrees", c.degrees,
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"new_width", rotated.Bounds().Dx(),
		"new_height", rotated.Bounds().Dy())

	return rotated, true, nil
}

func normalizeDegrees(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d
}

// rotateQuarter performs an exact clockwise rotation by quarters*90 degrees.
func rotateQuarter(img image.Image, quarters int) *image.RGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var dst *image.RGBA
	if quarters%2 == 1 {
		dst = image.NewRGBA(image.Rect(0, 0, height, width))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, width, height))
	}

	parallelRows(height, func(y int) {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch quarters {
			case 1:
				// 90° clockwise: (x,y) -> (height-1-y, x)
				dst.Set(height-1-y, x, c)
			case 2:
				dst.Set(width-1-x, height-1-y, c)
			case 3:
				// 90° counterclockwise: (x,y) -> (y, width-1-x)
				dst.Set(y, width-1-x, c)
			}
		}
	})
	return dst
}

// rotateArbitrary rotates clockwise around the image center onto an expanded,
// transparent canvas using bilinear interpolation.
func rotateArbitrary(img image.Image, degrees float64) *image.RGBA {
	bounds := img.Bounds()
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	theta := degrees * math.Pi / 180
	sin, cos := math.Sincos(theta)

	newWidth, newHeight := expandedCanvas(width, height, sin, cos)
	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))

	srcCX := float64(bounds.Min.X) + width/2
	srcCY := float64(bounds.Min.Y) + height/2
	dstCX := float64(newWidth) / 2
	dstCY := float64(newHeight) / 2

	// In y-down image coordinates a clockwise turn maps (x, y) to
	// (x*cos - y*sin, x*sin + y*cos).
	s2d := f64.Aff3{
		cos, -sin, dstCX - (cos*srcCX - sin*srcCY),
		sin, cos, dstCY - (sin*srcCX + cos*srcCY),
	}
	draw.BiLinear.Transform(dst, s2d, img, bounds, draw.Src, nil)
	return dst
}

func expandedCanvas(width, height, sin, cos float64) (int, int) {
	const epsilon = 1e-9
	w := math.Abs(width*cos) + math.Abs(height*sin)
	h := math.Abs(width*sin) + math.Abs(height*cos)
	return max(int(math.Ceil(w-epsilon)), 1), max(int(math.Ceil(h-epsilon)), 1)
}
