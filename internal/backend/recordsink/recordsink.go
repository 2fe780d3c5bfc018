package recordsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jo-hoe/goclerk/internal/backend/extraction"
)

// ErrRecordNotFound is returned by Read when no record is stored for an image
var ErrRecordNotFound = errors.New("record not found")

// RecordSink persists validated records for an image. Writing again for the
// same image replaces the previous record.
type RecordSink interface {
	Write(ctx context.Context, imagePath string, record *extraction.ExtractionRecord) error
	Read(ctx context.Context, imagePath string) (*extraction.ExtractionRecord, error)
	Close() error
}

func decodeRecord(data []byte, source string) (*extraction.ExtractionRecord, error) {
	var record extraction.ExtractionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record from %s: %w", source, err)
	}
	return &record, nil
}
