// Package judge ranks candidate ideas on four fixed axes. Heuristic scores
// are always computed; a zero-variance model assessment refines two of
// them when available. Ordering is fully deterministic.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"roadnerd/internal/extract"
	"roadnerd/internal/llm"
	"roadnerd/internal/logger"
	"roadnerd/internal/model"
	"roadnerd/internal/prompt"
	"roadnerd/internal/safety"
)

// Completer is the slice of the gateway the judge needs.
type Completer interface {
	Complete(ctx context.Context, call llm.Call) (*llm.Completion, error)
}

// Weights for the total score. They sum to 1.
var Weights = map[model.Axis]float64{
	model.AxisSafety:      0.3,
	model.AxisSuccess:     0.4,
	model.AxisCost:        0.2,
	model.AxisDeterminism: 0.1,
}

const (
	issueLimit   = 4000
	excerptLimit = 300
)

// Ranked is one scored candidate.
type Ranked struct {
	ID        string                 `json:"id"`
	Total     float64                `json:"total"`
	Scores    map[model.Axis]float64 `json:"scores"`
	Rationale string                 `json:"rationale"`
	Idea      model.Idea             `json:"-"`
}

// Verdict is the full ranking for one judge call.
type Verdict struct {
	Ranked         []Ranked        `json:"ranked"`
	Degraded       bool            `json:"ranking_degraded"`
	DegradedReason string          `json:"degraded_reason,omitempty"`
	FailureKind    string          `json:"failure_kind,omitempty"`
	Backend        *model.Backend  `json:"backend_identity,omitempty"`
	Sampling       *model.Sampling `json:"sampling_parameters,omitempty"`
}

// IDs returns the ranking order.
func (v Verdict) IDs() []string {
	ids := make([]string, len(v.Ranked))
	for i, r := range v.Ranked {
		ids[i] = r.ID
	}
	return ids
}

// Ideas returns the ranked ideas with scores attached.
func (v Verdict) Ideas() []model.Idea {
	out := make([]model.Idea, len(v.Ranked))
	for i, r := range v.Ranked {
		out[i] = r.Idea
	}
	return out
}

// Scores returns id -> axis scores.
func (v Verdict) Scores() map[string]map[model.Axis]float64 {
	out := make(map[string]map[model.Axis]float64, len(v.Ranked))
	for _, r := range v.Ranked {
		out[r.ID] = r.Scores
	}
	return out
}

// Rationale returns id -> rationale.
func (v Verdict) Rationale() map[string]string {
	out := make(map[string]string, len(v.Ranked))
	for _, r := range v.Ranked {
		out[r.ID] = r.Rationale
	}
	return out
}

type Judge struct {
	llm       Completer
	prompts   *prompt.Store
	heuristic heuristic
	sanitizer *llm.Sanitizer
	log       *zap.Logger
}

// New builds a judge. A nil completer ranks heuristically and reports the
// verdict as degraded.
func New(c Completer, prompts *prompt.Store, log *zap.Logger) *Judge {
	return &Judge{
		llm:       c,
		prompts:   prompts,
		heuristic: heuristic{checker: safety.New()},
		sanitizer: llm.DefaultSanitizer(),
		log:       logger.OrNop(log).Named("judge"),
	}
}

type assessment struct {
	likelihood  float64
	determinism float64
	hasLike     bool
	hasDet      bool
}

// Judge scores and orders ideas. It never fails: when the model cannot be
// consulted the verdict is heuristic and marked degraded.
func (j *Judge) Judge(ctx context.Context, issue string, ideas []model.Idea) Verdict {
	issue = j.sanitizer.Prepare(issue, issueLimit)
	if len(ideas) == 0 {
		return Verdict{Ranked: []Ranked{}}
	}

	v := Verdict{}
	assessments, err := j.assess(ctx, issue, ideas, &v)
	if err != nil {
		v.Degraded = true
		v.DegradedReason = err.Error()
		if kind := llm.KindOf(err); kind != "" {
			v.FailureKind = string(kind)
		}
		j.log.Warn("ranking degraded", zap.Error(err))
	}

	v.Ranked = make([]Ranked, len(ideas))
	for i, idea := range ideas {
		h := j.heuristic.score(issue, idea)
		if a, ok := assessments[idea.ID]; ok {
			if a.hasLike {
				h.scores[model.AxisSuccess] = (h.scores[model.AxisSuccess] + a.likelihood) / 2
				h.note(model.AxisSuccess)("model %.2f", a.likelihood)
			}
			if a.hasDet {
				h.scores[model.AxisDeterminism] = (h.scores[model.AxisDeterminism] + a.determinism) / 2
				h.note(model.AxisDeterminism)("model %.2f", a.determinism)
			}
		}

		var total float64
		for _, axis := range model.Axes {
			h.scores[axis] = round4(h.scores[axis])
			total += Weights[axis] * h.scores[axis]
		}

		scored := idea.Clone()
		scored.Scores = h.scores
		v.Ranked[i] = Ranked{
			ID:        idea.ID,
			Total:     round4(total),
			Scores:    h.scores,
			Rationale: rationale(h),
			Idea:      scored,
		}
	}

	if v.Degraded {
		sortDegraded(v.Ranked)
	} else {
		sortRanked(v.Ranked)
	}
	return v
}

func (j *Judge) assess(ctx context.Context, issue string, ideas []model.Idea, v *Verdict) (map[string]assessment, error) {
	if j.llm == nil || j.prompts == nil {
		return nil, errors.New("model assessment unavailable")
	}

	tpl, err := j.prompts.Load(prompt.KindJudge, "")
	if err != nil {
		return nil, err
	}
	candidates, err := candidateBlock(ideas)
	if err != nil {
		return nil, err
	}
	text := prompt.Render(tpl.Text, map[string]string{
		"ISSUE":      issue,
		"CANDIDATES": candidates,
	})

	// Strict keeps zero variance even for families with a sampling floor.
	// Such a model may answer with nothing, which degrades to the
	// heuristic order and stays reproducible.
	comp, err := j.llm.Complete(ctx, llm.Call{
		Prompt:    text,
		Overrides: llm.Conservative(),
		Count:     len(ideas),
		Strict:    true,
	})
	if err != nil {
		var f *llm.Failure
		if errors.As(err, &f) {
			v.Backend, v.Sampling = &f.Identity, &f.Sampling
		}
		return nil, fmt.Errorf("model assessment failed: %w", err)
	}
	v.Backend, v.Sampling = &comp.Backend, &comp.Sampling

	known := make(map[string]bool, len(ideas))
	for _, idea := range ideas {
		known[idea.ID] = true
	}

	out := map[string]assessment{}
	for _, m := range extract.Maps(comp.Text) {
		id, _ := m["id"].(string)
		id = strings.TrimSpace(id)
		if !known[id] {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		var a assessment
		a.likelihood, a.hasLike = unitScore(m["likelihood"])
		a.determinism, a.hasDet = unitScore(m["determinism"])
		if a.hasLike || a.hasDet {
			out[id] = a
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no usable assessment")
	}
	j.log.Debug("model assessment parsed", zap.Int("assessed", len(out)), zap.Int("candidates", len(ideas)))
	return out, nil
}

func candidateBlock(ideas []model.Idea) (string, error) {
	wire := model.ToWireAll(ideas)
	for i := range wire {
		wire[i].Scores = nil
		for k := range wire[i].Evidence {
			ev := &wire[i].Evidence[k]
			if len(ev.StdoutExcerpt) > excerptLimit {
				ev.StdoutExcerpt = llm.TruncateForLLM(ev.StdoutExcerpt, excerptLimit)
			}
		}
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}
	return string(data), nil
}

// unitScore accepts 0..1, percentages up to 100, and numeric strings.
func unitScore(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return 0, false
	}
	if f > 1 {
		f /= 100
	}
	return f, true
}

func sortRanked(r []Ranked) {
	sort.SliceStable(r, func(a, b int) bool {
		if r[a].Total != r[b].Total {
			return r[a].Total > r[b].Total
		}
		return r[a].ID < r[b].ID
	})
}

// sortDegraded orders without the model: safest first, then candidates
// with evidence, then heuristic total.
func sortDegraded(r []Ranked) {
	sort.SliceStable(r, func(a, b int) bool {
		ra, rb := r[a].Idea.Risk.Rank(), r[b].Idea.Risk.Rank()
		if ra != rb {
			return ra < rb
		}
		ea, eb := r[a].Idea.HasEvidence(), r[b].Idea.HasEvidence()
		if ea != eb {
			return ea
		}
		if r[a].Total != r[b].Total {
			return r[a].Total > r[b].Total
		}
		return r[a].ID < r[b].ID
	})
}

func rationale(s axisScores) string {
	parts := make([]string, 0, len(model.Axes))
	for _, axis := range model.Axes {
		p := fmt.Sprintf("%s %.2f", axis, s.scores[axis])
		if notes := s.notes[axis]; len(notes) > 0 {
			p += " (" + strings.Join(notes, ", ") + ")"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
