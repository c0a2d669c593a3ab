package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"roadnerd/internal/config"
)

// openaiBackend talks to any OpenAI-compatible server: llama.cpp server,
// llamafile, LM Studio or Ollama's /v1 endpoint.
type openaiBackend struct {
	client openai.Client
}

func newOpenAIBackend(cfg config.Backend) *openaiBackend {
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// local servers ignore the key but the client requires one
		apiKey = "sk-local"
	}
	return &openaiBackend{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
	}
}

func (b *openaiBackend) kind() string { return "openai" }

func (b *openaiBackend) complete(ctx context.Context, req request) (string, error) {
	if req.Transport == TransportChat {
		return b.chat(ctx, req)
	}

	params := openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(req.Model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(req.Prompt)},
		Temperature: openai.Float(req.Sampling.Temperature),
		TopP:        openai.Float(req.Sampling.TopP),
		MaxTokens:   openai.Int(int64(req.Sampling.MaxTokens)),
	}
	if req.Sampling.Seed != nil {
		params.Seed = openai.Int(int64(*req.Sampling.Seed))
	}

	resp, err := b.client.Completions.New(ctx, params)
	if err != nil {
		return "", wrapOpenAIError("completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", &Failure{Kind: EmptyResponse, Err: errors.New("no choices in completion response")}
	}
	return resp.Choices[0].Text, nil
}

func (b *openaiBackend) chat(ctx context.Context, req request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: openai.Float(req.Sampling.Temperature),
		TopP:        openai.Float(req.Sampling.TopP),
		MaxTokens:   openai.Int(int64(req.Sampling.MaxTokens)),
	}
	if req.Sampling.Seed != nil {
		params.Seed = openai.Int(int64(*req.Sampling.Seed))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapOpenAIError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", &Failure{Kind: EmptyResponse, Err: errors.New("no choices in chat response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *openaiBackend) ping(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx); err != nil {
		return wrapOpenAIError("models", err)
	}
	return nil
}

func wrapOpenAIError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Failure{Kind: BadStatus, Status: apiErr.StatusCode, Err: fmt.Errorf("openai %s: %w", op, err)}
	}
	return fmt.Errorf("openai %s: %w", op, err)
}
