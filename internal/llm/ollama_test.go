package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roadnerd/internal/config"
)

func testConfig(baseURL, modelName string) config.Config {
	cfg := config.Default()
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.Model = modelName
	cfg.Backend.Timeout = 2 * time.Second
	return cfg
}

func newTestGateway(t *testing.T, cfg config.Config) *Gateway {
	t.Helper()
	g, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			return
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if req.Stream {
			t.Error("expected stream to be false")
		}
		if req.Options.NumPredict != 512 {
			t.Errorf("num_predict = %d, want 512", req.Options.NumPredict)
		}
		if req.Options.Temperature != 0 {
			t.Errorf("temperature = %v, want 0", req.Options.Temperature)
		}

		json.NewEncoder(w).Encode(generateResponse{Response: `[{"hypothesis":"h","category":"dns"}]`, Done: true})
	}))
	defer server.Close()

	g := newTestGateway(t, testConfig(server.URL, "llama3.2:3b"))
	got, err := g.Complete(t.Context(), Call{Prompt: "p", Count: 1})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Backend.Transport != string(TransportCompletion) {
		t.Errorf("transport = %s, want completion", got.Backend.Transport)
	}
	if got.Text == "" {
		t.Error("expected text")
	}
}

func TestOllamaChatForGptOss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Options.Temperature != 1.0 || req.Options.TopP != 1.0 {
			t.Errorf("sampling = %v/%v, want family floor 1.0/1.0", req.Options.Temperature, req.Options.TopP)
		}

		json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "ok"}, Done: true})
	}))
	defer server.Close()

	g := newTestGateway(t, testConfig(server.URL, "gpt-oss:20b"))
	// A caller asking for zero temperature is raised to the family floor.
	got, err := g.Complete(t.Context(), Call{Prompt: "p", Overrides: Conservative()})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Text != "ok" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Backend.Transport != string(TransportChat) {
		t.Errorf("transport = %s, want chat", got.Backend.Transport)
	}
}

func TestOllamaFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    FailureKind
		status  int
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			want:   BadStatus,
			status: http.StatusNotFound,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			want:    EmptyResponse,
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(generateResponse{Response: "  \n", Done: true})
			},
			want: EmptyResponse,
		},
		{
			name: "slow backend",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    BackendTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			g := newTestGateway(t, testConfig(server.URL, "qwen2.5:3b"))
			_, err := g.Complete(t.Context(), Call{Prompt: "p", Timeout: tt.timeout})
			if err == nil {
				t.Fatal("expected failure")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (err: %v)", got, tt.want, err)
			}
			if tt.status != 0 {
				var f *Failure
				if !asFailureOK(err, &f) || f.Status != tt.status {
					t.Errorf("status = %v, want %d", f, tt.status)
				}
			}
		})
	}
}

func TestOllamaUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	g := newTestGateway(t, testConfig(url, "qwen2.5:3b"))
	_, err := g.Complete(t.Context(), Call{Prompt: "p"})
	if KindOf(err) != BackendUnreachable {
		t.Fatalf("kind = %s, want %s (err: %v)", KindOf(err), BackendUnreachable, err)
	}
	if err := g.Ping(t.Context()); KindOf(err) != BackendUnreachable {
		t.Errorf("Ping kind = %s, want %s", KindOf(err), BackendUnreachable)
	}
}

func TestOllamaNoRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := newTestGateway(t, testConfig(server.URL, "qwen2.5:3b"))
	_, _ = g.Complete(t.Context(), Call{Prompt: "p"})
	if calls != 1 {
		t.Errorf("backend called %d times, want 1", calls)
	}
}
