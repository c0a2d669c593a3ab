// Package brainstorm asks the model for candidate ideas and turns whatever
// comes back into a schema-conformant list. It repairs at most once and
// falls back to a single degenerate idea rather than failing.
package brainstorm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roadnerd/internal/config"
	"roadnerd/internal/extract"
	"roadnerd/internal/llm"
	"roadnerd/internal/logger"
	"roadnerd/internal/model"
	"roadnerd/internal/prompt"
	"roadnerd/internal/sysinfo"
)

// Completer is the slice of the gateway the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, call llm.Call) (*llm.Completion, error)
}

const (
	MaxCreativity = 3
	// GeneralCategory is used for fallback ideas when no hint is known.
	GeneralCategory = "general"
	fallbackLimit   = 500
)

var creativityLevels = [MaxCreativity + 1]struct {
	temperature float64
	topP        float64
	instruction string
}{
	{0.0, 0.5, "Stick to the most common, well-known causes."},
	{0.3, 0.8, "Prefer common causes and include one less obvious possibility."},
	{0.7, 0.95, "Mix common causes with less obvious ones."},
	{1.0, 1.0, "Think broadly and include unusual but plausible causes."},
}

// ClampCreativity limits c to 0..MaxCreativity.
func ClampCreativity(c int) int {
	return max(0, min(MaxCreativity, c))
}

// Sampling maps a creativity level to temperature and top_p. Both are
// non-decreasing in c.
func Sampling(c int) (temperature, topP float64) {
	l := creativityLevels[ClampCreativity(c)]
	return l.temperature, l.topP
}

// Request is one brainstorm call.
type Request struct {
	Issue      string
	Hint       string
	Creativity int
	Count      int
	Retrieval  string
	// Focus is an extra instruction appended to the hint, used when
	// brainstorming one of several competing categories.
	Focus string
	Debug bool
	// IDs lets callers pool ideas from several calls without collisions.
	IDs *model.IDSource
}

// Diagnostics describes how the result was obtained.
type Diagnostics struct {
	Requested       int            `json:"requested"`
	Creativity      int            `json:"creativity"`
	Strategy        string         `json:"strategy,omitempty"`
	Tag             extract.Tag    `json:"tag"`
	Discarded       int            `json:"discarded"`
	RepairFired     bool           `json:"repair_fired"`
	RepairRecovered int            `json:"repair_recovered"`
	Fallback        bool           `json:"fallback"`
	Template        string         `json:"template,omitempty"`
	Backend         model.Backend  `json:"backend_identity"`
	Sampling        model.Sampling `json:"sampling_parameters"`
	Failures        []string       `json:"failures,omitempty"`
	DurationMs      int64          `json:"duration_ms"`
	Prompt          string         `json:"prompt,omitempty"`
	Raw             string         `json:"raw,omitempty"`
}

// Result is the orchestrator's output. Ideas is never empty.
type Result struct {
	Ideas       []model.Idea
	Diagnostics Diagnostics
}

type Orchestrator struct {
	llm       Completer
	prompts   *prompt.Store
	extractor *extract.Engine
	system    sysinfo.Provider
	sanitizer *llm.Sanitizer
	cfg       config.BrainstormConfig
	schema    string
	log       *zap.Logger
}

type Option func(*Orchestrator)

// WithSystemInfo adds a host description to every prompt.
func WithSystemInfo(p sysinfo.Provider) Option {
	return func(o *Orchestrator) { o.system = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = logger.OrNop(l).Named("brainstorm") }
}

// New fails only when the candidate schema cannot be reflected.
func New(c Completer, prompts *prompt.Store, cfg config.BrainstormConfig, opts ...Option) (*Orchestrator, error) {
	schema, err := prompt.Schema()
	if err != nil {
		return nil, fmt.Errorf("candidate schema: %w", err)
	}
	o := &Orchestrator{
		llm:       c,
		prompts:   prompts,
		sanitizer: llm.DefaultSanitizer(),
		cfg:       cfg,
		schema:    schema,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.extractor = extract.New(o.log)
	return o, nil
}

// Count clamps a requested count, substituting the default for zero.
// Negative counts clamp to 1.
func (o *Orchestrator) Count(n int) int {
	if n == 0 {
		n = o.cfg.DefaultCount
	}
	maxCount := o.cfg.MaxCount
	if maxCount <= 0 {
		maxCount = 12
	}
	return max(1, min(maxCount, n))
}

// Brainstorm never returns an empty list.
func (o *Orchestrator) Brainstorm(ctx context.Context, req Request) Result {
	start := time.Now()
	count := o.Count(req.Count)
	creativity := ClampCreativity(req.Creativity)
	temperature, topP := Sampling(creativity)
	ids := req.IDs
	if ids == nil {
		ids = model.NewIDSource()
	}
	hint := strings.ToLower(strings.TrimSpace(req.Hint))
	issue := o.sanitizer.Prepare(req.Issue, o.issueLimit())

	diag := Diagnostics{Requested: count, Creativity: creativity, Tag: extract.TagNone}

	var ideas []model.Idea
	raw := ""

	tpl, err := o.prompts.Load(prompt.KindBrainstorm, hint)
	if err != nil {
		diag.Failures = append(diag.Failures, err.Error())
	} else {
		diag.Template = tpl.Name
		text := prompt.Render(tpl.Text, map[string]string{
			"ISSUE":         issue,
			"SYSTEM":        o.systemSummary(ctx),
			"CATEGORY_HINT": hint,
			"FOCUS":         req.Focus,
			"RETRIEVAL":     o.sanitizer.Sanitize(req.Retrieval),
			"CREATIVITY":    creativityLevels[creativity].instruction,
			"N":             strconv.Itoa(count),
			"SCHEMA":        o.schema,
		})
		if req.Debug {
			diag.Prompt = text
		}

		comp, err := o.complete(ctx, &diag, llm.Call{
			Prompt:    text,
			Overrides: llm.Overrides{Temperature: &temperature, TopP: &topP},
			Count:     count,
		})
		if err == nil {
			raw = comp.Text
			res := o.extractor.Extract(raw, count, ids)
			ideas = res.Ideas
			diag.Strategy = res.Strategy
			diag.Tag = res.Tag
			diag.Discarded = res.Discarded
		}
	}
	if req.Debug {
		diag.Raw = raw
	}

	if diag.Tag != extract.TagFull && strings.TrimSpace(raw) != "" {
		ideas = o.repair(ctx, &diag, issue, hint, ideas, count, ids)
		diag.Tag = extract.TagFor(len(ideas), count)
	}

	if len(ideas) == 0 {
		diag.Fallback = true
		ideas = []model.Idea{fallbackIdea(raw, hint, diag.Failures, ids)}
	}

	diag.DurationMs = time.Since(start).Milliseconds()
	o.log.Info("brainstorm finished",
		zap.Int("requested", count),
		zap.Int("returned", len(ideas)),
		zap.String("tag", string(diag.Tag)),
		zap.Bool("repair", diag.RepairFired),
		zap.Bool("fallback", diag.Fallback))

	return Result{Ideas: ideas, Diagnostics: diag}
}

func (o *Orchestrator) complete(ctx context.Context, diag *Diagnostics, call llm.Call) (*llm.Completion, error) {
	comp, err := o.llm.Complete(ctx, call)
	if err != nil {
		var f *llm.Failure
		if errors.As(err, &f) {
			diag.Backend, diag.Sampling = f.Identity, f.Sampling
			diag.Failures = append(diag.Failures, string(f.Kind))
		} else {
			diag.Failures = append(diag.Failures, err.Error())
		}
		return nil, err
	}
	diag.Backend, diag.Sampling = comp.Backend, comp.Sampling
	return comp, nil
}

// repair issues the single follow-up call at creativity 0 and merges its
// ideas into found.
func (o *Orchestrator) repair(ctx context.Context, diag *Diagnostics, issue, hint string, found []model.Idea, count int, ids *model.IDSource) []model.Idea {
	tpl, err := o.prompts.Load(prompt.KindRepair, hint)
	if err != nil {
		diag.Failures = append(diag.Failures, err.Error())
		return found
	}

	missing := count - len(found)
	var have []string
	for _, idea := range found {
		have = append(have, "- "+idea.Hypothesis)
	}
	text := prompt.Render(tpl.Text, map[string]string{
		"ISSUE":         issue,
		"FOUND":         strings.Join(have, "\n"),
		"CATEGORY_HINT": hint,
		"MISSING":       strconv.Itoa(missing),
		"SCHEMA":        o.schema,
	})

	temperature, topP := Sampling(0)
	diag.RepairFired = true
	first := diag.Sampling
	comp, err := o.complete(ctx, diag, llm.Call{
		Prompt:    text,
		Overrides: llm.Overrides{Temperature: &temperature, TopP: &topP},
		Count:     missing,
	})
	// The record keeps the sampling of the primary call.
	if first != (model.Sampling{}) {
		diag.Sampling = first
	}
	if err != nil {
		return found
	}

	res := o.extractor.Extract(comp.Text, count, ids)
	diag.Discarded += res.Discarded
	if diag.Strategy == "" {
		diag.Strategy = res.Strategy
	}

	merged := Merge(found, res.Ideas, count)
	diag.RepairRecovered = len(merged) - len(found)
	return merged
}

// Merge appends extra to base, skipping hypotheses already present, and
// truncates to limit.
func Merge(base, extra []model.Idea, limit int) []model.Idea {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]model.Idea, 0, min(limit, len(base)+len(extra)))
	for _, list := range [][]model.Idea{base, extra} {
		for _, idea := range list {
			if len(out) >= limit {
				return out
			}
			key := NormalizeHypothesis(idea.Hypothesis)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, idea)
		}
	}
	return out
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHypothesis folds case and punctuation for duplicate detection.
func NormalizeHypothesis(h string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(strings.ToLower(h), " "))
}

func fallbackIdea(raw, hint string, failures []string, ids *model.IDSource) model.Idea {
	hypothesis := strings.TrimSpace(raw)
	if hypothesis == "" {
		reason := "no output"
		if len(failures) > 0 {
			reason = strings.Join(failures, ", ")
		}
		hypothesis = "The model backend produced no usable answer (" + reason + "). Check that the model server is running and try again."
	}
	category := hint
	if category == "" {
		category = GeneralCategory
	}
	return model.Idea{
		ID:                ids.Next(),
		Category:          category,
		Hypothesis:        llm.TruncateForLLM(hypothesis, fallbackLimit),
		VerificationSteps: []string{},
		RemediationSteps:  []string{},
		Risk:              model.RiskMedium,
	}
}

func (o *Orchestrator) systemSummary(ctx context.Context) string {
	if o.system == nil {
		return ""
	}
	info, err := o.system.Info(ctx)
	if err != nil {
		o.log.Debug("system info unavailable", zap.Error(err))
		return ""
	}
	return info.Summary()
}

func (o *Orchestrator) issueLimit() int {
	if o.cfg.IssueLimit > 0 {
		return o.cfg.IssueLimit
	}
	return 4000
}
