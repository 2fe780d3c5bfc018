package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jo-hoe/goclerk/internal/backend/annotation"
	"github.com/jo-hoe/goclerk/internal/backend/extraction"
	"github.com/jo-hoe/goclerk/internal/backend/gateway"
	"github.com/jo-hoe/goclerk/internal/backend/imageprocessing"
	"github.com/jo-hoe/goclerk/internal/backend/recordsink"
)

// ResponseSuffix names the raw model response kept next to the input in debug mode
const ResponseSuffix = "_qwen.txt"

// Dependencies lets callers replace the collaborators built from config
type Dependencies struct {
	Client    gateway.InferenceClient
	Sink      recordsink.RecordSink
	Rotations annotation.RotationStore
	// Output receives each persisted record as indented JSON; nil discards it.
	Output io.Writer
}

type CoreService struct {
	config     *ServiceConfig
	normalizer *imageprocessing.Normalizer
	client     gateway.InferenceClient
	sink       recordsink.RecordSink
	output     io.Writer
}

// NewCoreService wires the Gradio gateway, record sink and rotation store described by config
func NewCoreService(config *ServiceConfig, output io.Writer) (*CoreService, error) {
	client, err := gateway.NewGradioClient(config.Gateway, gateway.TokenFromEnv(config.Gateway.TokenEnv))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}

	sink, err := recordsink.NewRecordSink(config.Sink)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record sink: %w", err)
	}

	var rotations annotation.RotationStore = annotation.NoopRotationStore{}
	if config.Rotation.Enabled {
		rotations = annotation.NewXattrRotationStore(config.Rotation.Attribute)
	}

	service, err := NewCoreServiceWithDependencies(config, Dependencies{
		Client:    client,
		Sink:      sink,
		Rotations: rotations,
		Output:    output,
	})
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return service, nil
}

func NewCoreServiceWithDependencies(config *ServiceConfig, deps Dependencies) (*CoreService, error) {
	if deps.Client == nil {
		return nil, errors.New("inference client is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("record sink is required")
	}
	normalizer, err := imageprocessing.NewNormalizer(config.MaxSize, config.Debug, config.TempDir, deps.Rotations)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize normalizer: %w", err)
	}
	output := deps.Output
	if output == nil {
		output = io.Discard
	}
	return &CoreService{
		config:     config,
		normalizer: normalizer,
		client:     deps.Client,
		sink:       deps.Sink,
		output:     output,
	}, nil
}

// ProcessFile runs one image through normalize, inference, extraction and persistence.
// Failures are reported in the result and never affect other files.
// An empty prompt uses the configured one.
func (service *CoreService) ProcessFile(ctx context.Context, path, prompt string) *FileResult {
	result := &FileResult{Path: path}
	if prompt == "" {
		prompt = service.config.Prompt
	}

	if err := ctx.Err(); err != nil {
		return result.fail(StageInput, err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		slog.Warn("file not found, skipping", "path", path)
		return result.skip(fmt.Errorf("%w: %s", ErrFileNotFound, path))
	}

	normalized, err := service.normalizer.Normalize(path)
	if err != nil {
		return result.fail(StageNormalize, err)
	}
	if normalized.Transient {
		defer func() {
			if err := os.Remove(normalized.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("failed to remove temporary image", "path", normalized.Path, "error", err)
			}
		}()
	} else if normalized.Modified() {
		result.NormalizedPath = normalized.Path
	}

	response, err := service.client.Infer(ctx, normalized.Path, prompt)
	if err != nil {
		return result.fail(StageInference, err)
	}
	result.Latency = response.Latency
	slog.Info("successfully processed image", "path", path, "latency", response.Latency.Round(time.Millisecond))

	if service.config.Debug {
		slog.Debug("raw model response", "path", path, "response", response.Text)
		responsePath := ResponsePath(path)
		if err := os.WriteFile(responsePath, []byte(response.Text), 0644); err != nil {
			slog.Warn("failed to save model response", "path", responsePath, "error", err)
		} else {
			result.ResponsePath = responsePath
		}
	}

	record, err := extraction.Extract(response.Text)
	if err != nil {
		return result.fail(StageExtraction, err)
	}

	if err := service.sink.Write(ctx, path, record); err != nil {
		return result.fail(StagePersist, err)
	}
	result.Record = record
	result.Status = StatusSucceeded

	if data, err := record.MarshalIndent(); err == nil {
		_, _ = fmt.Fprintf(service.output, "%s\n", data)
	}
	return result
}

// ProcessBatch handles paths sequentially in input order
func (service *CoreService) ProcessBatch(ctx context.Context, paths []string) *BatchReport {
	report := &BatchReport{RunID: uuid.NewString()}
	start := time.Now()
	slog.Info("starting batch", "run_id", report.RunID, "files", len(paths))

	for _, path := range paths {
		result := service.ProcessFile(ctx, path, "")
		if result.Status == StatusFailed {
			slog.Error("failed to process file",
				"run_id", report.RunID, "path", path, "stage", result.Stage, "error", result.Err)
		}
		report.Results = append(report.Results, result)
	}

	report.Duration = time.Since(start)
	slog.Info("batch finished",
		"run_id", report.RunID,
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"skipped", report.Skipped(),
		"duration", report.Duration.Round(time.Millisecond))
	return report
}

// Record returns the stored record for an image
func (service *CoreService) Record(ctx context.Context, path string) (*extraction.ExtractionRecord, error) {
	return service.sink.Read(ctx, path)
}

func (service *CoreService) Close() error {
	return service.sink.Close()
}

// ResponsePath is where the raw response for an input is saved in debug mode
func ResponsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ResponseSuffix
}
