package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config configures a GradioClient
type Config struct {
	// Space is the hosted Space id, e.g. "GanymedeNil/Qwen2-VL-7B".
	Space string `yaml:"space"`
	// BaseURL overrides the URL derived from Space.
	BaseURL        string `yaml:"baseURL" validate:"omitempty,url"`
	APIName        string `yaml:"apiName"`
	Model          string `yaml:"model"`
	TokenEnv       string `yaml:"tokenEnv"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" validate:"gte=0"`
}

// GradioClient calls a Gradio endpoint through its REST queue API
type GradioClient struct {
	baseURL    string
	apiName    string
	model      string
	token      string
	httpClient *http.Client

	mu         sync.Mutex
	apiPrefix  string
	configured bool
}

// NewGradioClient creates a client; token may be empty for anonymous access
func NewGradioClient(config Config, token string) (*GradioClient, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		space := config.Space
		if space == "" {
			space = DefaultSpace
		}
		baseURL = SpaceURL(space)
	}
	apiName := config.APIName
	if apiName == "" {
		apiName = DefaultAPIName
	}
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	return &GradioClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiName: "/" + strings.TrimLeft(apiName, "/"),
		model:   model,
		token:   token,
		httpClient: &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, IdleConnTimeout: 90 * time.Second},
			Timeout:   time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// SpaceURL maps "owner/name" to the Space's direct host
func SpaceURL(space string) string {
	host := strings.ToLower(space)
	host = strings.NewReplacer("/", "-", "_", "-", ".", "-").Replace(host)
	return "https://" + host + ".hf.space"
}

// TokenFromEnv reads the bearer token once and logs whether one was found
func TokenFromEnv(name string) string {
	if name == "" {
		name = DefaultTokenEnv
	}
	token := os.Getenv(name)
	if token != "" {
		slog.Info("using API token from environment", "variable", name)
	} else {
		slog.Warn("no API token found in environment; some features may be limited", "variable", name)
	}
	return token
}

// Infer uploads the image, queues a prediction and waits for its result
func (c *GradioClient) Infer(ctx context.Context, imagePath, prompt string) (*Response, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	start := time.Now()

	if err := c.discoverConfig(ctx); err != nil {
		return nil, err
	}

	remotePath, err := c.upload(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	eventID, err := c.queue(ctx, remotePath, filepath.Base(imagePath), prompt)
	if err != nil {
		return nil, err
	}

	text, err := c.awaitResult(ctx, eventID)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	slog.Info("GradioClient: prediction completed",
		"image", imagePath,
		"latency_ms", float64(latency.Microseconds())/1000,
		"response_length", len(text))

	return &Response{Text: text, Latency: latency}, nil
}

type gradioConfig struct {
	APIPrefix string `json:"api_prefix"`
}

// discoverConfig reads the app's API prefix once; older servers expose none.
func (c *GradioClient) discoverConfig(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return nil
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch gradio config: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp, "config"); err != nil {
		return err
	}

	var cfg gradioConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return fmt.Errorf("failed to decode gradio config: %w", err)
	}
	c.apiPrefix = strings.TrimRight(cfg.APIPrefix, "/")
	c.configured = true
	slog.Debug("GradioClient: discovered config", "base_url", c.baseURL, "api_prefix", c.apiPrefix)
	return nil
}

func (c *GradioClient) endpoint(path string) string {
	return c.baseURL + c.apiPrefix + path
}

func (c *GradioClient) upload(ctx context.Context, imagePath string) (string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", imagePath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filepath.Base(imagePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", imagePath, err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/upload"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", imagePath, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp, "upload"); err != nil {
		return "", err
	}

	var paths []string
	if err := json.NewDecoder(resp.Body).Decode(&paths); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(paths) == 0 {
		return "", errors.New("upload returned no file path")
	}
	return paths[0], nil
}

type fileData struct {
	Path     string         `json:"path"`
	OrigName string         `json:"orig_name,omitempty"`
	Meta     map[string]any `json:"meta"`
}

type callRequest struct {
	Data []any `json:"data"`
}

type callResponse struct {
	EventID string `json:"event_id"`
}

func (c *GradioClient) queue(ctx context.Context, remotePath, origName, prompt string) (string, error) {
	payload, err := json.Marshal(callRequest{Data: []any{
		fileData{Path: remotePath, OrigName: origName, Meta: map[string]any{"_type": "gradio.FileData"}},
		prompt,
		c.model,
	}})
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/call"+c.apiName), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to queue prediction: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp, "call"); err != nil {
		return "", err
	}

	var parsed callResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode call response: %w", err)
	}
	if parsed.EventID == "" {
		return "", errors.New("call response has no event_id")
	}
	return parsed.EventID, nil
}

// awaitResult reads the server-sent event stream until the prediction completes or fails.
func (c *GradioClient) awaitResult(ctx context.Context, eventID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/call"+c.apiName+"/"+eventID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to read prediction result: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp, "result"); err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				return decodeOutput(data)
			case "error":
				if data == "" || data == "null" {
					return "", errors.New("remote prediction failed")
				}
				return "", fmt.Errorf("remote prediction failed: %s", data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read event stream: %w", err)
	}
	return "", errors.New("event stream ended without a result")
}

// decodeOutput returns the first output of a completed prediction as text
func decodeOutput(data string) (string, error) {
	var outputs []json.RawMessage
	if err := json.Unmarshal([]byte(data), &outputs); err != nil {
		return "", fmt.Errorf("failed to decode prediction output: %w", err)
	}
	if len(outputs) == 0 {
		return "", errors.New("prediction returned no output")
	}
	var text string
	if err := json.Unmarshal(outputs[0], &text); err != nil {
		// non-string outputs are passed through verbatim
		return string(outputs[0]), nil
	}
	return text, nil
}

func (c *GradioClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func checkStatus(resp *http.Response, step string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("gradio %s failed: status %d: %s", step, resp.StatusCode, strings.TrimSpace(string(data)))
}
