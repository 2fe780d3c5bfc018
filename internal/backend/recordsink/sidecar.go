package recordsink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/goclerk/internal/backend/extraction"
)

const DefaultSidecarExtension = ".json"

// SidecarSink stores each record in a file next to the image sharing its stem
type SidecarSink struct {
	extension string
}

func NewSidecarSink(extension string) *SidecarSink {
	if extension == "" {
		extension = DefaultSidecarExtension
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return &SidecarSink{extension: extension}
}

// SidecarPath returns where the record for imagePath is stored
func (s *SidecarSink) SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + s.extension
}

func (s *SidecarSink) Write(_ context.Context, imagePath string, record *extraction.ExtractionRecord) error {
	data, err := record.MarshalIndent()
	if err != nil {
		return err
	}
	path := s.SidecarPath(imagePath)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write sidecar %s: %w", path, err)
	}
	slog.Info("SidecarSink: saved record", "image", imagePath, "path", path)
	return nil
}

func (s *SidecarSink) Read(_ context.Context, imagePath string) (*extraction.ExtractionRecord, error) {
	path := s.SidecarPath(imagePath)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar %s: %w", path, err)
	}
	return decodeRecord(data, path)
}

func (s *SidecarSink) Close() error {
	return nil
}
