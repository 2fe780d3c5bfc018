package gateway

import (
	"context"
	"time"
)

const (
	DefaultSpace    = "GanymedeNil/Qwen2-VL-7B"
	DefaultModel    = "Qwen/Qwen2-VL-7B-Instruct"
	DefaultAPIName  = "/run_example"
	DefaultPrompt   = "Extract text"
	DefaultTokenEnv = "HF_TOKEN"
)

// Response is the raw model answer for one image
type Response struct {
	Text    string
	Latency time.Duration
}

// InferenceClient submits one image and a prompt to a vision model.
// Calls block until the model answers or the call fails; there are no retries.
type InferenceClient interface {
	Infer(ctx context.Context, imagePath, prompt string) (*Response, error)
}
