// Package pipeline sequences one troubleshooting request through the
// classifier, orchestrator, prober and judge, and writes exactly one run
// record per operation. Everything runs on the caller's goroutine.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"roadnerd/internal/brainstorm"
	"roadnerd/internal/classify"
	"roadnerd/internal/config"
	"roadnerd/internal/judge"
	"roadnerd/internal/kb"
	"roadnerd/internal/llm"
	"roadnerd/internal/logger"
	"roadnerd/internal/model"
	"roadnerd/internal/probe"
	"roadnerd/internal/runid"
	"roadnerd/internal/safety"
)

// Operation names stored in run records.
const (
	OpDiagnose   = "diagnose"
	OpBrainstorm = "brainstorm"
	OpProbe      = "probe"
	OpJudge      = "judge"
)

// RunSink receives finished run records.
type RunSink interface {
	Append(rec model.RunRecord) error
}

// Deps are the collaborators of a Service. Knowledge, Bus and Log are
// optional.
type Deps struct {
	Classifier *classify.Classifier
	Knowledge  *kb.Base
	Brainstorm *brainstorm.Orchestrator
	Prober     *probe.Prober
	Judge      *judge.Judge
	IDs        *runid.Generator
	Sinks      []RunSink
	Bus        *EventBus
	Log        *zap.Logger
}

type Service struct {
	classifier    *classify.Classifier
	knowledge     *kb.Base
	brainstorm    *brainstorm.Orchestrator
	prober        *probe.Prober
	judge         *judge.Judge
	ids           *runid.Generator
	sinks         []RunSink
	bus           *EventBus
	safety        *safety.Checker
	sanitizer     *llm.Sanitizer
	stageTimeout  time.Duration
	lowConfidence float64
	topK          int
	log           *zap.Logger
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		classifier:    deps.Classifier,
		knowledge:     deps.Knowledge,
		brainstorm:    deps.Brainstorm,
		prober:        deps.Prober,
		judge:         deps.Judge,
		ids:           deps.IDs,
		sinks:         deps.Sinks,
		bus:           deps.Bus,
		safety:        safety.New(),
		sanitizer:     llm.DefaultSanitizer(),
		stageTimeout:  cfg.StageTimeout,
		lowConfidence: cfg.Classifier.LowConfidence,
		topK:          cfg.Classifier.DisambiguateTopK,
		log:           logger.OrNop(deps.Log).Named("pipeline"),
	}
	if s.classifier == nil {
		s.classifier = classify.New()
	}
	if s.bus == nil {
		s.bus = NewEventBus()
	}
	if s.stageTimeout <= 0 {
		s.stageTimeout = 120 * time.Second
	}
	if s.topK < 2 {
		s.topK = 3
	}
	return s
}

// Bus exposes stage events to front ends.
func (s *Service) Bus() *EventBus {
	return s.bus
}

// Prober exposes the evidence prober's admission rules to front ends.
func (s *Service) Prober() *probe.Prober {
	return s.prober
}

// ClassifyResult is the classifier verdict plus input-type detection.
type ClassifyResult struct {
	Classification model.Classification `json:"classification"`
	Input          classify.InputType   `json:"input_type"`
	LowConfidence  bool                 `json:"low_confidence"`
}

// Classify has no side effects and writes no record.
func (s *Service) Classify(text string) ClassifyResult {
	cls := s.classifier.Classify(text)
	return ClassifyResult{
		Classification: cls,
		Input:          classify.DetectInput(text),
		LowConfidence:  classify.IsLowConfidence(cls, s.lowConfidence),
	}
}

type BrainstormRequest struct {
	Issue      string
	Hint       string
	Creativity int
	Count      int
	Retrieval  string
	Debug      bool
}

type BrainstormResult struct {
	RunID       string                 `json:"run_id"`
	Ideas       []model.Idea           `json:"-"`
	Diagnostics brainstorm.Diagnostics `json:"diagnostics"`
}

// Brainstorm generates candidates without probing or ranking them.
func (s *Service) Brainstorm(ctx context.Context, req BrainstormRequest) BrainstormResult {
	start := time.Now()
	runID := s.ids.Next()

	var res brainstorm.Result
	s.stage(ctx, runID, StageBrainstorm, s.stageTimeout, func(ctx context.Context) {
		res = s.brainstorm.Brainstorm(ctx, brainstorm.Request{
			Issue:      req.Issue,
			Hint:       req.Hint,
			Creativity: req.Creativity,
			Count:      req.Count,
			Retrieval:  req.Retrieval,
			Debug:      req.Debug,
		})
	})

	d := res.Diagnostics
	s.record(runID, model.RunRecord{
		Operation:      OpBrainstorm,
		Issue:          req.Issue,
		Backend:        d.Backend,
		Sampling:       d.Sampling,
		RequestedCount: d.Requested,
		Candidates:     model.ToWireAll(res.Ideas),
		Ranking:        []string{},
		ExtractionTag:  string(d.Tag),
		RepairFired:    d.RepairFired,
		Fallback:       d.Fallback,
		Category:       req.Hint,
	}, start)

	return BrainstormResult{RunID: runID, Ideas: res.Ideas, Diagnostics: d}
}

type ProbeResult struct {
	RunID  string       `json:"run_id"`
	Ideas  []model.Idea `json:"-"`
	Report probe.Report `json:"report"`
}

// Probe attaches evidence to ideas. With runChecks false nothing runs.
func (s *Service) Probe(ctx context.Context, ideas []model.Idea, runChecks bool) ProbeResult {
	start := time.Now()
	runID := s.ids.Next()

	var out []model.Idea
	var report probe.Report
	s.stage(ctx, runID, StageProbe, s.probeTimeout(), func(ctx context.Context) {
		out, report = s.prober.Probe(ctx, ideas, runChecks)
	})

	s.record(runID, model.RunRecord{
		Operation:      OpProbe,
		RequestedCount: len(ideas),
		Candidates:     model.ToWireAll(out),
		Ranking:        []string{},
	}, start)

	return ProbeResult{RunID: runID, Ideas: out, Report: report}
}

type JudgeResult struct {
	RunID   string        `json:"run_id"`
	Verdict judge.Verdict `json:"verdict"`
}

// Judge ranks ideas that were produced elsewhere.
func (s *Service) Judge(ctx context.Context, issue string, ideas []model.Idea) JudgeResult {
	start := time.Now()
	runID := s.ids.Next()

	v := s.rank(ctx, runID, issue, ideas)

	rec := model.RunRecord{
		Operation:      OpJudge,
		Issue:          issue,
		RequestedCount: len(ideas),
		Candidates:     model.ToWireAll(v.Ideas()),
		Ranking:        v.IDs(),
		Degraded:       v.Degraded,
	}
	if v.Backend != nil {
		rec.Backend = *v.Backend
	}
	if v.Sampling != nil {
		rec.Sampling = *v.Sampling
	}
	s.record(runID, rec, start)

	return JudgeResult{RunID: runID, Verdict: v}
}

type DiagnoseRequest struct {
	Issue      string
	Hint       string
	Creativity int
	Count      int
	RunChecks  bool
	Retrieval  string
	Debug      bool
	// NoDisambiguate forces a single brainstorm even at low confidence.
	NoDisambiguate bool
}

// Report is the full diagnose outcome. Ideas are in ranking order.
type Report struct {
	RunID          string                            `json:"run_id"`
	Classification model.Classification              `json:"classification"`
	Input          classify.InputType                `json:"input_type"`
	Category       string                            `json:"category"`
	KnownFix       *kb.Match                         `json:"known_fix,omitempty"`
	Ideas          []model.Idea                      `json:"-"`
	Verdict        judge.Verdict                     `json:"verdict"`
	Brainstorm     brainstorm.Diagnostics            `json:"brainstorm"`
	Probe          probe.Report                      `json:"probe"`
	Disambiguation *Disambiguation                   `json:"disambiguation,omitempty"`
	Previews       map[string][]safety.PreviewAction `json:"previews"`
	DurationMs     int64                             `json:"duration_ms"`
}

// Diagnose runs the whole sequence. It always returns a report; stage
// failures surface as diagnostics.
func (s *Service) Diagnose(ctx context.Context, req DiagnoseRequest) *Report {
	start := time.Now()
	runID := s.ids.Next()
	rep := &Report{RunID: runID}

	var cls ClassifyResult
	s.stage(ctx, runID, StageClassify, s.stageTimeout, func(context.Context) {
		cls = s.Classify(req.Issue)
	})
	rep.Classification = cls.Classification
	rep.Input = cls.Input

	// A known fix is offered alongside the candidates and steers the
	// brainstorm through the reference notes.
	if m := s.knowledge.Match(req.Issue, cls.Classification.TopLabel); m != nil {
		rep.KnownFix = m
		req.Retrieval = kb.WithNotes(req.Retrieval, m)
		s.bus.Publish(Event{Type: EventKnownFix, RunID: runID, Stage: StageClassify, Detail: m.Entry})
	}

	hint := req.Hint
	if hint == "" && !cls.LowConfidence {
		hint = cls.Classification.TopLabel
	}

	count := s.brainstorm.Count(req.Count)
	labels := classify.Labels(cls.Classification, s.topK)

	var ideas []model.Idea
	if req.Hint == "" && cls.LowConfidence && !req.NoDisambiguate && count >= 2 && len(labels) >= 2 {
		d := s.disambiguate(ctx, runID, req, labels, count)
		rep.Disambiguation = d
		rep.Brainstorm = d.Brainstorm
		rep.Probe = d.Probe
		rep.Verdict = d.final
		ideas = d.final.Ideas()
		rep.Category = d.Committed
	} else {
		var bs brainstorm.Result
		s.stage(ctx, runID, StageBrainstorm, s.stageTimeout, func(ctx context.Context) {
			bs = s.brainstorm.Brainstorm(ctx, brainstorm.Request{
				Issue:      req.Issue,
				Hint:       hint,
				Creativity: req.Creativity,
				Count:      count,
				Retrieval:  req.Retrieval,
				Debug:      req.Debug,
			})
		})
		rep.Brainstorm = bs.Diagnostics

		probed := bs.Ideas
		s.stage(ctx, runID, StageProbe, s.probeTimeout(), func(ctx context.Context) {
			probed, rep.Probe = s.prober.Probe(ctx, bs.Ideas, req.RunChecks)
		})

		rep.Verdict = s.rank(ctx, runID, req.Issue, probed)
		ideas = rep.Verdict.Ideas()
		rep.Category = hint
		if rep.Category == "" && len(ideas) > 0 {
			rep.Category = ideas[0].Category
		}
	}

	rep.Ideas = ideas
	rep.Previews = make(map[string][]safety.PreviewAction, len(ideas))
	for _, idea := range ideas {
		rep.Previews[idea.ID] = s.safety.Preview(idea)
	}
	rep.DurationMs = time.Since(start).Milliseconds()

	cl := rep.Classification
	s.record(runID, model.RunRecord{
		Operation:      OpDiagnose,
		Issue:          req.Issue,
		Backend:        rep.Brainstorm.Backend,
		Sampling:       rep.Brainstorm.Sampling,
		RequestedCount: count,
		Candidates:     model.ToWireAll(ideas),
		Ranking:        rep.Verdict.IDs(),
		Classification: &cl,
		ExtractionTag:  string(rep.Brainstorm.Tag),
		RepairFired:    rep.Brainstorm.RepairFired,
		Fallback:       rep.Brainstorm.Fallback,
		Degraded:       rep.Verdict.Degraded,
		Category:       rep.Category,
		KnownFix:       knownFixName(rep.KnownFix),
	}, start)

	return rep
}

func knownFixName(m *kb.Match) string {
	if m == nil {
		return ""
	}
	return m.Entry
}

func (s *Service) rank(ctx context.Context, runID, issue string, ideas []model.Idea) judge.Verdict {
	var v judge.Verdict
	s.stage(ctx, runID, StageJudge, s.stageTimeout, func(ctx context.Context) {
		v = s.judge.Judge(ctx, issue, ideas)
	})
	if v.Degraded {
		s.bus.Publish(Event{Type: EventStageDegraded, RunID: runID, Stage: StageJudge, Detail: v.DegradedReason})
	}
	return v
}

// stage runs fn under its own deadline and brackets it with events.
func (s *Service) stage(ctx context.Context, runID, name string, timeout time.Duration, fn func(context.Context)) {
	s.bus.Publish(Event{Type: EventStageStart, RunID: runID, Stage: name})
	start := time.Now()

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	fn(sctx)

	s.bus.Publish(Event{Type: EventStageComplete, RunID: runID, Stage: name, Data: time.Since(start)})
}

func (s *Service) probeTimeout() time.Duration {
	if s.prober == nil {
		return s.stageTimeout
	}
	return max(s.stageTimeout, s.prober.MaxDuration())
}

// record fills the common fields and hands rec to every sink. Sink
// failures are logged; the caller's response never depends on them.
func (s *Service) record(runID string, rec model.RunRecord, start time.Time) {
	rec.ID = runID
	rec.Timestamp = start.UTC()
	issue, redacted := s.sanitizer.SanitizeWithReport(rec.Issue)
	if len(redacted) > 0 {
		s.log.Info("secrets redacted from issue", zap.String("run_id", runID), zap.Strings("kinds", redacted))
	}
	rec.Issue = strings.TrimSpace(llm.TruncateForLLM(issue, logger.MaxIssueSize))
	rec.DurationMs = time.Since(start).Milliseconds()
	if rec.Candidates == nil {
		rec.Candidates = []model.WireIdea{}
	}
	if rec.Ranking == nil {
		rec.Ranking = []string{}
	}

	for _, sink := range s.sinks {
		if err := sink.Append(rec); err != nil {
			s.log.Warn("run record not written", zap.String("run_id", runID), zap.Error(err))
		}
	}
	s.bus.Publish(Event{Type: EventRunRecorded, RunID: runID, Stage: StageRecord, Detail: rec.Operation})
}
