package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/goclerk/internal/backend/recordsink"
	"github.com/jo-hoe/goclerk/internal/core"
)

const defaultUploadDirName = "goclerk-uploads"

type APIService struct {
	coreService *core.CoreService
	uploadDir   string
}

type extractRequest struct {
	Prompt string `form:"prompt" validate:"omitempty,max=4000"`
}

type recordRequest struct {
	Name string `param:"name" validate:"required"`
}

type ExtractResponse struct {
	Name   string           `json:"name"`
	Result *core.FileResult `json:"result"`
}

// NewAPIService stores uploads in config.Server.UploadDir, creating it if needed
func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) (*APIService, error) {
	uploadDir := config.Server.UploadDir
	if uploadDir == "" {
		uploadDir = filepath.Join(os.TempDir(), defaultUploadDirName)
	}
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", uploadDir, err)
	}
	return &APIService{
		coreService: coreService,
		uploadDir:   uploadDir,
	}, nil
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.POST("/api/extract", s.extractHandler)
	e.GET("/api/records/:name", s.recordHandler)
}

func (s *APIService) extractHandler(ctx echo.Context) error {
	var request extractRequest
	if err := ctx.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Error("extractHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "failed to get uploaded file")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("extractHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("extractHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	name := uuid.NewString() + "_" + sanitizeFilename(file.Filename)
	path := filepath.Join(s.uploadDir, name)
	if err := saveUpload(path, src); err != nil {
		slog.Error("extractHandler: failed to store uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store uploaded file")
	}

	result := s.coreService.ProcessFile(ctx.Request().Context(), path, request.Prompt)
	if result.Status != core.StatusSucceeded {
		slog.Error("extractHandler: failed to process uploaded image",
			"stage", result.Stage, "error", result.Err, "filename", file.Filename)
	}
	return ctx.JSON(statusForResult(result), ExtractResponse{Name: name, Result: result})
}

func (s *APIService) recordHandler(ctx echo.Context) error {
	var request recordRequest
	if err := ctx.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}
	if request.Name != filepath.Base(request.Name) || strings.HasPrefix(request.Name, ".") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid record name")
	}

	record, err := s.coreService.Record(ctx.Request().Context(), filepath.Join(s.uploadDir, request.Name))
	if errors.Is(err, recordsink.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	if err != nil {
		slog.Error("recordHandler: failed to read record", "error", err, "name", request.Name)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read record")
	}
	return ctx.JSON(http.StatusOK, record)
}

func statusForResult(result *core.FileResult) int {
	if result.Status == core.StatusSucceeded {
		return http.StatusOK
	}
	switch result.Stage {
	case core.StageInference:
		return http.StatusBadGateway
	case core.StageExtraction, core.StageNormalize:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}

// sanitizeFilename keeps the base name and replaces characters that are awkward in paths
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0 || r == ':':
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
