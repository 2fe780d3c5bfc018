package imageprocessing

import (
	"testing"
)

func TestNewScaleCommand_InvalidMaxSize(t *testing.T) {
	for _, maxSize := range []int{0, -100} {
		if _, err := NewScaleCommand(maxSize); err == nil {
			t.Errorf("Expected error for maxSize %d", maxSize)
		}
	}
}

func TestComputeBoundedDimensions(t *testing.T) {
	tests := []struct {
		name                   string
		width, height, maxSize int
		wantWidth, wantHeight  int
		wantScaled             bool
	}{
		{"Landscape", 2000, 1000, 1280, 1280, 640, true},
		{"Portrait truncates short side", 1000, 3000, 1280, 426, 1280, true},
		{"Square", 3000, 3000, 1280, 1280, 1280, true},
		{"Exactly at bound", 1280, 720, 1280, 1280, 720, false},
		{"Smaller than bound", 100, 50, 1280, 100, 50, false},
		{"Thin strip keeps one pixel", 5000, 1, 1280, 1280, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, scaled := computeBoundedDimensions(tt.width, tt.height, tt.maxSize)
			if w != tt.wantWidth || h != tt.wantHeight || scaled != tt.wantScaled {
				t.Errorf("computeBoundedDimensions(%d, %d, %d) = (%d, %d, %v), want (%d, %d, %v)",
					tt.width, tt.height, tt.maxSize, w, h, scaled, tt.wantWidth, tt.wantHeight, tt.wantScaled)
			}
		})
	}
}

func TestScaleCommand_Execute(t *testing.T) {
	command, err := NewScaleCommand(10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	scaled, changed, err := command.Execute(newTestImage(40, 20))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !changed {
		t.Fatal("Expected image to be scaled")
	}
	if scaled.Bounds().Dx() != 10 || scaled.Bounds().Dy() != 5 {
		t.Errorf("Expected 10x5, got %dx%d", scaled.Bounds().Dx(), scaled.Bounds().Dy())
	}
	if command.Suffix() != "_resized" {
		t.Errorf("Expected suffix _resized, got %s", command.Suffix())
	}
}

func TestScaleCommand_NeverUpscales(t *testing.T) {
	command, _ := NewScaleCommand(10)
	img := newTestImage(8, 4)

	result, changed, err := command.Execute(img)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if changed {
		t.Error("Expected small image to be left alone")
	}
	if result != img {
		t.Error("Expected the same image to be returned")
	}
}
