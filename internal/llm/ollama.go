package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"roadnerd/internal/config"
)

const ollamaSystemPrompt = "You are a careful offline IT diagnostic assistant."

// ollamaBackend speaks Ollama's native API. Deadlines come from the
// request context, so the http.Client carries no timeout of its own.
type ollamaBackend struct {
	baseURL    string
	httpClient *http.Client
}

func newOllamaBackend(cfg config.Backend) *ollamaBackend {
	return &ollamaBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	Seed        *int    `json:"seed,omitempty"`
}

// generateRequest is the /api/generate request format
type generateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

// generateResponse is the /api/generate response format
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type chatResponse struct {
	Message  chatMessage `json:"message"`
	Response string      `json:"response"`
	Done     bool        `json:"done"`
}

func (b *ollamaBackend) kind() string { return "ollama" }

func (b *ollamaBackend) complete(ctx context.Context, req request) (string, error) {
	opts := ollamaOptions{
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		NumPredict:  req.Sampling.MaxTokens,
		NumCtx:      req.Sampling.NumCtx,
		Seed:        req.Sampling.Seed,
	}

	if req.Transport == TransportChat {
		system := req.System
		if system == "" {
			system = ollamaSystemPrompt
		}
		var resp chatResponse
		err := b.post(ctx, "/api/chat", chatRequest{
			Model: req.Model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: req.Prompt},
			},
			Options: opts,
		}, &resp)
		if err != nil {
			return "", err
		}
		if resp.Message.Content != "" {
			return resp.Message.Content, nil
		}
		return resp.Response, nil
	}

	var resp generateResponse
	err := b.post(ctx, "/api/generate", generateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Options: opts,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (b *ollamaBackend) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &Failure{
			Kind:   BadStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Failure{Kind: EmptyResponse, Err: errors.New("ollama returned an empty body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Failure{
			Kind:   BadStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func (b *ollamaBackend) ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach Ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Failure{Kind: BadStatus, Status: resp.StatusCode, Err: fmt.Errorf("ollama returned status %d", resp.StatusCode)}
	}
	return nil
}
