package recordsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pkg/xattr"

	"github.com/jo-hoe/goclerk/internal/backend/annotation"
	"github.com/jo-hoe/goclerk/internal/backend/extraction"
)

const DefaultRecordAttribute = "org.gunzel.clerk.transcribed#S"

// XattrSink stores the record as an extended attribute on the image itself
type XattrSink struct {
	attribute string
}

func NewXattrSink(attribute string) (*XattrSink, error) {
	if !annotation.Supported() {
		return nil, fmt.Errorf("extended attributes are not supported on this platform")
	}
	if attribute == "" {
		attribute = DefaultRecordAttribute
	}
	return &XattrSink{attribute: annotation.AttributeName(attribute)}, nil
}

func (s *XattrSink) Write(_ context.Context, imagePath string, record *extraction.ExtractionRecord) error {
	data, err := record.MarshalIndent()
	if err != nil {
		return err
	}
	if err := xattr.Set(imagePath, s.attribute, data); err != nil {
		return fmt.Errorf("failed to set attribute %s on %s: %w", s.attribute, imagePath, err)
	}
	slog.Info("XattrSink: saved record as extended attribute", "image", imagePath, "attribute", s.attribute)
	return nil
}

func (s *XattrSink) Read(_ context.Context, imagePath string) (*extraction.ExtractionRecord, error) {
	data, err := xattr.Get(imagePath, s.attribute)
	if err != nil {
		if errors.Is(err, xattr.ENOATTR) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read attribute %s on %s: %w", s.attribute, imagePath, err)
	}
	return decodeRecord(data, imagePath)
}

func (s *XattrSink) Close() error {
	return nil
}
