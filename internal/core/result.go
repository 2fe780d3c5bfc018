package core

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jo-hoe/goclerk/internal/backend/extraction"
)

var ErrFileNotFound = errors.New("file not found")

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Stage names the pipeline step a file failed in
type Stage string

const (
	StageInput      Stage = "input"
	StageNormalize  Stage = "normalize"
	StageInference  Stage = "inference"
	StageExtraction Stage = "extraction"
	StagePersist    Stage = "persist"
)

type FileResult struct {
	Path           string
	Status         Status
	Stage          Stage
	Err            error
	Record         *extraction.ExtractionRecord
	NormalizedPath string
	ResponsePath   string
	Latency        time.Duration
}

func (r *FileResult) fail(stage Stage, err error) *FileResult {
	r.Status = StatusFailed
	r.Stage = stage
	r.Err = err
	return r
}

func (r *FileResult) skip(err error) *FileResult {
	r.Status = StatusSkipped
	r.Stage = StageInput
	r.Err = err
	return r
}

// ValidationFailure returns the violated rule when extraction rejected the model output
func (r *FileResult) ValidationFailure() (*extraction.ValidationError, bool) {
	var validationErr *extraction.ValidationError
	if errors.As(r.Err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}

type fileResultJSON struct {
	Path           string                       `json:"path"`
	Status         Status                       `json:"status"`
	Stage          Stage                        `json:"stage,omitempty"`
	Error          string                       `json:"error,omitempty"`
	Record         *extraction.ExtractionRecord `json:"record,omitempty"`
	NormalizedPath string                       `json:"normalizedPath,omitempty"`
	LatencyMs      int64                        `json:"latencyMs,omitempty"`
}

func (r *FileResult) MarshalJSON() ([]byte, error) {
	out := fileResultJSON{
		Path:           r.Path,
		Status:         r.Status,
		Record:         r.Record,
		NormalizedPath: r.NormalizedPath,
		LatencyMs:      r.Latency.Milliseconds(),
	}
	if r.Status != StatusSucceeded {
		out.Stage = r.Stage
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// BatchReport holds one result per input path in input order
type BatchReport struct {
	RunID    string
	Results  []*FileResult
	Duration time.Duration
}

func (b *BatchReport) count(status Status) int {
	n := 0
	for _, result := range b.Results {
		if result.Status == status {
			n++
		}
	}
	return n
}

func (b *BatchReport) Succeeded() int { return b.count(StatusSucceeded) }
func (b *BatchReport) Failed() int    { return b.count(StatusFailed) }
func (b *BatchReport) Skipped() int   { return b.count(StatusSkipped) }
