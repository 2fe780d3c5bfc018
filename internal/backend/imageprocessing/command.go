package imageprocessing

import (
	"image"
)

// Command defines the interface for all in-memory image transforms.
// Execute returns the (possibly new) image and whether it changed anything.
type Command interface {
	Name() string
	// Suffix is appended to the file stem of a debug copy when the command applied.
	Suffix() string
	Execute(img image.Image) (image.Image, bool, error)
}
