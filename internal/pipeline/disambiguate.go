package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"roadnerd/internal/brainstorm"
	"roadnerd/internal/extract"
	"roadnerd/internal/judge"
	"roadnerd/internal/model"
	"roadnerd/internal/probe"
)

const (
	maxDiscriminativeChecks = 3
	maxChecksPerIdea        = 3
	maxCheckLen             = 80
)

// Disambiguation describes the two-pass flow used when the classifier
// cannot settle on one category.
type Disambiguation struct {
	Categories  []string               `json:"categories"`
	Checks      []string               `json:"checks"`
	BaselineTop string                 `json:"baseline_top"`
	FinalTop    string                 `json:"final_top"`
	Committed   string                 `json:"committed_category"`
	Facets      map[string]int         `json:"facets"`
	Brainstorm  brainstorm.Diagnostics `json:"-"`
	Probe       probe.Report           `json:"-"`

	baseline judge.Verdict
	final    judge.Verdict
}

// splitCount spreads count across labels round-robin. Labels that would
// get nothing are dropped.
func splitCount(labels []string, count int) ([]string, []int) {
	if len(labels) > count {
		labels = labels[:count]
	}
	counts := make([]int, len(labels))
	for i := 0; i < count; i++ {
		counts[i%len(labels)]++
	}
	return labels, counts
}

func focusFor(label string, labels []string) string {
	var others []string
	for _, l := range labels {
		if l != label {
			others = append(others, l)
		}
	}
	return "Include discriminative checks that distinguish this from: " + strings.Join(others, ", ") + "."
}

func (s *Service) disambiguate(ctx context.Context, runID string, req DiagnoseRequest, labels []string, count int) *Disambiguation {
	labels, counts := splitCount(labels, count)
	d := &Disambiguation{
		Categories: labels,
		Checks:     []string{},
		Facets:     make(map[string]int, len(labels)),
	}

	ids := model.NewIDSource()
	var pool []model.Idea
	merged := brainstorm.Diagnostics{Requested: count}
	s.stage(ctx, runID, StageBrainstorm, s.stageTimeout, func(ctx context.Context) {
		for i, label := range labels {
			res := s.brainstorm.Brainstorm(ctx, brainstorm.Request{
				Issue:      req.Issue,
				Hint:       label,
				Creativity: req.Creativity,
				Count:      counts[i],
				Retrieval:  req.Retrieval,
				Focus:      focusFor(label, labels),
				Debug:      req.Debug,
				IDs:        ids,
			})
			pool = append(pool, res.Ideas...)
			d.Facets[label] = len(res.Ideas)
			mergeDiagnostics(&merged, res.Diagnostics, i == 0)
		}
	})
	if len(pool) > count {
		pool = pool[:count]
	}
	merged.Tag = extract.TagFor(len(pool), count)
	d.Brainstorm = merged

	d.baseline = s.rank(ctx, runID, req.Issue, pool)
	if len(d.baseline.Ranked) > 0 {
		d.BaselineTop = d.baseline.Ranked[0].ID
	}

	d.Checks = s.selectChecks(d.baseline.Ideas())
	ideas := d.baseline.Ideas()
	d.Probe = probe.Report{DryRun: true, Commands: []probe.CommandStatus{}}
	if req.RunChecks && len(d.Checks) > 0 && s.prober != nil {
		s.stage(ctx, runID, StageDisambiguate, s.probeTimeout(), func(ctx context.Context) {
			var evidence map[string]model.Evidence
			evidence, d.Probe = s.prober.ProbeChecks(ctx, d.Checks)
			ideas = attachEvidence(ideas, evidence)
		})
	}

	d.final = s.rank(ctx, runID, req.Issue, ideas)
	if len(d.final.Ranked) > 0 {
		top := d.final.Ranked[0]
		d.FinalTop = top.ID
		d.Committed = top.Idea.Category
	}

	s.log.Info("disambiguation finished",
		zap.String("run_id", runID),
		zap.Strings("categories", labels),
		zap.Strings("checks", d.Checks),
		zap.String("baseline_top", d.BaselineTop),
		zap.String("final_top", d.FinalTop),
		zap.String("committed", d.Committed))
	return d
}

// mergeDiagnostics folds one per-category brainstorm into the pooled view.
// Backend identity and sampling come from the first call.
func mergeDiagnostics(dst *brainstorm.Diagnostics, src brainstorm.Diagnostics, first bool) {
	if first {
		dst.Creativity = src.Creativity
		dst.Strategy = src.Strategy
		dst.Template = src.Template
		dst.Backend = src.Backend
		dst.Sampling = src.Sampling
		dst.Prompt = src.Prompt
		dst.Raw = src.Raw
	}
	dst.Discarded += src.Discarded
	dst.RepairFired = dst.RepairFired || src.RepairFired
	dst.RepairRecovered += src.RepairRecovered
	dst.Fallback = dst.Fallback || src.Fallback
	dst.Failures = append(dst.Failures, src.Failures...)
	dst.DurationMs += src.DurationMs
}

// selectChecks walks ideas in ranking order and keeps up to three short,
// admissible, distinct checks.
func (s *Service) selectChecks(ideas []model.Idea) []string {
	out := []string{}
	if s.prober == nil {
		return out
	}
	seen := map[string]bool{}
	for _, idea := range ideas {
		for i, step := range idea.VerificationSteps {
			if i >= maxChecksPerIdea || len(out) >= maxDiscriminativeChecks {
				break
			}
			norm, err := s.prober.AllowList().Admit(step)
			if err != nil || len(norm) > maxCheckLen || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out
}

// attachEvidence gives each idea the evidence for every check it proposed.
func attachEvidence(ideas []model.Idea, evidence map[string]model.Evidence) []model.Idea {
	out := model.CloneAll(ideas)
	for i := range out {
		for _, step := range out[i].VerificationSteps {
			if ev, ok := evidence[probe.Normalize(step)]; ok && !hasEvidence(out[i], ev.Command) {
				out[i].Evidence = append(out[i].Evidence, ev)
			}
		}
	}
	return out
}

func hasEvidence(idea model.Idea, command string) bool {
	for _, ev := range idea.Evidence {
		if ev.Command == command {
			return true
		}
	}
	return false
}
