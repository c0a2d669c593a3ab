// Package llm is the single boundary to the model server. It owns transport
// selection, family-aware sampling defaults, the output token budget and
// failure tagging. It never retries; repair policy belongs to callers.
package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"roadnerd/internal/config"
	"roadnerd/internal/model"
)

// Transport is the request style used against the backend.
type Transport string

const (
	TransportAuto       Transport = "auto"
	TransportCompletion Transport = "completion"
	TransportChat       Transport = "chat"
)

// ParseTransport accepts "", auto, completion and chat.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TransportAuto:
		return TransportAuto, nil
	case TransportCompletion, TransportChat:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transport %q", s)
	}
}

// Overrides replace resolved sampling values when set.
type Overrides struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Seed        *int
}

// Conservative is the zero-variance sampling used for repair and ranking.
func Conservative() Overrides {
	t, p, seed := 0.0, 0.5, 42
	return Overrides{Temperature: &t, TopP: &p, Seed: &seed}
}

// Call is one model request.
type Call struct {
	Prompt    string
	System    string
	Transport Transport
	Overrides Overrides
	// Count is the number of candidates requested; it sizes the token budget.
	Count   int
	Timeout time.Duration
	// Strict bypasses the family sampling floor.
	Strict bool
}

// Completion is raw model text plus what produced it.
type Completion struct {
	Text     string
	Backend  model.Backend
	Sampling model.Sampling
	Duration time.Duration
}

type request struct {
	Model     string
	Prompt    string
	System    string
	Transport Transport
	Sampling  model.Sampling
}

type backend interface {
	kind() string
	complete(ctx context.Context, req request) (string, error)
	ping(ctx context.Context) error
}

type Gateway struct {
	cfg     config.Backend
	family  config.Family
	backend backend
	log     *zap.Logger
}

// New builds a gateway for cfg.Backend.
func New(cfg config.Config, log *zap.Logger) (*Gateway, error) {
	var b backend
	switch cfg.Backend.Kind {
	case "ollama":
		b = newOllamaBackend(cfg.Backend)
	case "openai":
		b = newOpenAIBackend(cfg.Backend)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
	return newGateway(cfg, b, log), nil
}

func newGateway(cfg config.Config, b backend, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		cfg:     cfg.Backend,
		family:  cfg.FamilyFor(cfg.Backend.Model),
		backend: b,
		log:     log.Named("llm"),
	}
}

// Family is the family the configured model resolved to.
func (g *Gateway) Family() config.Family {
	return g.family
}

// TokenBudget is max(base, count * per-candidate).
func (g *Gateway) TokenBudget(count int) int {
	if count < 1 {
		count = 1
	}
	return max(g.cfg.TokenBase, count*g.cfg.TokensPerIdea)
}

// Plan resolves the transport and sampling a call would use.
// Precedence is family defaults < config < call overrides, then the family
// floor unless the call is strict.
func (g *Gateway) Plan(call Call) (model.Backend, model.Sampling) {
	t := call.Transport
	if t == "" || t == TransportAuto {
		t = Transport(g.cfg.Transport)
	}
	if t == "" || t == TransportAuto {
		t = Transport(g.family.Transport)
	}
	if t != TransportChat {
		t = TransportCompletion
	}

	s := model.Sampling{
		Temperature: g.family.Temperature,
		TopP:        g.family.TopP,
		MaxTokens:   g.TokenBudget(call.Count),
		NumCtx:      g.cfg.NumCtx,
	}
	if g.cfg.Temperature != nil {
		s.Temperature = *g.cfg.Temperature
	}
	if g.cfg.TopP != nil {
		s.TopP = *g.cfg.TopP
	}
	if g.cfg.MaxTokens > 0 {
		s.MaxTokens = g.cfg.MaxTokens
	}
	if g.cfg.Seed != 0 {
		seed := g.cfg.Seed
		s.Seed = &seed
	}

	o := call.Overrides
	if o.Temperature != nil {
		s.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		s.TopP = *o.TopP
	}
	if o.MaxTokens != nil && *o.MaxTokens > 0 {
		s.MaxTokens = *o.MaxTokens
	}
	if o.Seed != nil {
		seed := *o.Seed
		s.Seed = &seed
	}

	if !call.Strict {
		s.Temperature = math.Max(s.Temperature, g.family.MinTemperature)
		s.TopP = math.Max(s.TopP, g.family.MinTopP)
	}
	s.Temperature = math.Min(math.Max(s.Temperature, 0), 2)
	s.TopP = math.Min(math.Max(s.TopP, 0), 1)

	return model.Backend{Kind: g.backend.kind(), Model: g.cfg.Model, Transport: string(t)}, s
}

// Complete sends one request. Every error is a *Failure.
func (g *Gateway) Complete(ctx context.Context, call Call) (*Completion, error) {
	identity, sampling := g.Plan(call)

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := g.backend.complete(ctx, request{
		Model:     g.cfg.Model,
		Prompt:    call.Prompt,
		System:    call.System,
		Transport: Transport(identity.Transport),
		Sampling:  sampling,
	})
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(text) == "" {
		err = &Failure{Kind: EmptyResponse, Err: fmt.Errorf("%s returned no text", identity.Kind)}
	}
	if err != nil {
		f := asFailure(err)
		f.Identity = identity
		f.Sampling = sampling
		g.log.Warn("model call failed",
			zap.String("kind", string(f.Kind)),
			zap.String("model", identity.Model),
			zap.String("transport", identity.Transport),
			zap.Duration("elapsed", elapsed),
			zap.Error(f.Err))
		return nil, f
	}

	g.log.Debug("model call completed",
		zap.String("model", identity.Model),
		zap.String("transport", identity.Transport),
		zap.Float64("temperature", sampling.Temperature),
		zap.Float64("top_p", sampling.TopP),
		zap.Int("max_tokens", sampling.MaxTokens),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", elapsed))

	return &Completion{Text: text, Backend: identity, Sampling: sampling, Duration: elapsed}, nil
}

// Ping checks that the backend answers at all.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := g.backend.ping(ctx); err != nil {
		f := asFailure(err)
		f.Identity = model.Backend{Kind: g.backend.kind(), Model: g.cfg.Model}
		return f
	}
	return nil
}

// Identity describes the configured backend without making a call.
func (g *Gateway) Identity() model.Backend {
	id, _ := g.Plan(Call{})
	return id
}
