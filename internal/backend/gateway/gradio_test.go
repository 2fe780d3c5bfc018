package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type fakeGradio struct {
	apiPrefix  string
	answer     string
	failEvent  bool
	mu         sync.Mutex
	authHeader []string
	uploaded   []byte
	callBody   map[string]any
}

func (f *fakeGradio) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"api_prefix": f.apiPrefix, "version": "5.0.0"})
	})
	mux.HandleFunc(f.apiPrefix+"/upload", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		file, _, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		f.mu.Lock()
		f.uploaded = data
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]string{"/tmp/gradio/abc/scan.png"})
	})
	mux.HandleFunc(f.apiPrefix+"/call/run_example", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.callBody = body
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-1"})
	})
	mux.HandleFunc(f.apiPrefix+"/call/run_example/evt-1", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: heartbeat\ndata: null\n\n")
		if f.failEvent {
			_, _ = fmt.Fprint(w, "event: error\ndata: \"GPU quota exceeded\"\n\n")
			return
		}
		answer, _ := json.Marshal([]string{f.answer})
		_, _ = fmt.Fprintf(w, "event: complete\ndata: %s\n\n", answer)
	})
	return mux
}

func (f *fakeGradio) recordAuth(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeader = append(f.authHeader, r.Header.Get("Authorization"))
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func TestGradioClient_Infer(t *testing.T) {
	for _, prefix := range []string{"", "/gradio_api"} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			fake := &fakeGradio{apiPrefix: prefix, answer: "```json\n{}\n```"}
			server := httptest.NewServer(fake.handler())
			defer server.Close()

			client, err := NewGradioClient(Config{BaseURL: server.URL}, "secret")
			if err != nil {
				t.Fatalf("NewGradioClient failed: %v", err)
			}

			resp, err := client.Infer(context.Background(), writeImage(t), "")
			if err != nil {
				t.Fatalf("Infer failed: %v", err)
			}
			if resp.Text != fake.answer {
				t.Errorf("expected %q, got %q", fake.answer, resp.Text)
			}
			if resp.Latency <= 0 {
				t.Errorf("expected positive latency, got %v", resp.Latency)
			}
			if string(fake.uploaded) != "png-bytes" {
				t.Errorf("unexpected upload %q", fake.uploaded)
			}

			data, _ := fake.callBody["data"].([]any)
			if len(data) != 3 {
				t.Fatalf("expected 3 inputs, got %v", fake.callBody)
			}
			file, _ := data[0].(map[string]any)
			if file["path"] != "/tmp/gradio/abc/scan.png" {
				t.Errorf("unexpected file input %v", data[0])
			}
			if data[1] != DefaultPrompt {
				t.Errorf("expected default prompt, got %v", data[1])
			}
			if data[2] != DefaultModel {
				t.Errorf("expected default model, got %v", data[2])
			}
			for _, header := range fake.authHeader {
				if header != "Bearer secret" {
					t.Errorf("expected bearer token on every request, got %q", header)
				}
			}
		})
	}
}

func TestGradioClient_Anonymous(t *testing.T) {
	fake := &fakeGradio{answer: "plain text"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, _ := NewGradioClient(Config{BaseURL: server.URL}, "")
	if _, err := client.Infer(context.Background(), writeImage(t), "Describe"); err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	for _, header := range fake.authHeader {
		if header != "" {
			t.Errorf("expected no Authorization header, got %q", header)
		}
	}
	if fake.callBody["data"].([]any)[1] != "Describe" {
		t.Errorf("expected custom prompt to be sent")
	}
}

func TestGradioClient_RemoteError(t *testing.T) {
	fake := &fakeGradio{failEvent: true}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, _ := NewGradioClient(Config{BaseURL: server.URL}, "")
	_, err := client.Infer(context.Background(), writeImage(t), "")
	if err == nil {
		t.Fatal("expected error for failed prediction")
	}
	if !strings.Contains(err.Error(), "GPU quota exceeded") {
		t.Errorf("expected remote message in error, got %v", err)
	}
}

func TestGradioClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "space is sleeping", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewGradioClient(Config{BaseURL: server.URL}, "")
	_, err := client.Infer(context.Background(), writeImage(t), "")
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGradioClient_MissingImage(t *testing.T) {
	fake := &fakeGradio{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, _ := NewGradioClient(Config{BaseURL: server.URL}, "")
	if _, err := client.Infer(context.Background(), filepath.Join(t.TempDir(), "nope.png"), ""); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestSpaceURL(t *testing.T) {
	if got := SpaceURL("GanymedeNil/Qwen2-VL-7B"); got != "https://ganymedenil-qwen2-vl-7b.hf.space" {
		t.Errorf("unexpected space url %s", got)
	}
	if got := SpaceURL("org_name/model.v2"); got != "https://org-name-model-v2.hf.space" {
		t.Errorf("unexpected space url %s", got)
	}
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv("GOCLERK_TEST_TOKEN", "abc")
	if got := TokenFromEnv("GOCLERK_TEST_TOKEN"); got != "abc" {
		t.Errorf("expected token, got %q", got)
	}
	t.Setenv("GOCLERK_TEST_TOKEN", "")
	if got := TokenFromEnv("GOCLERK_TEST_TOKEN"); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
}
