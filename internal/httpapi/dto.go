package httpapi

import (
	"strings"

	"roadnerd/internal/judge"
	"roadnerd/internal/kb"
	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
)

// Several request fields accept two spellings so older clients keep working.

type ClassifyRequest struct {
	Text  string `json:"text"`
	Issue string `json:"issue"`
}

func (r ClassifyRequest) text() string {
	return firstNonBlank(r.Text, r.Issue)
}

type BrainstormRequest struct {
	Issue           string `json:"issue"`
	IssueText       string `json:"issue_text"`
	CategoryHint    string `json:"category_hint"`
	Creativity      *int   `json:"creativity"`
	CreativityLevel *int   `json:"creativity_level"`
	N               int    `json:"n"`
	RequestedCount  int    `json:"requested_count"`
	Retrieval       string `json:"retrieval"`
	Debug           bool   `json:"debug"`
}

func (r BrainstormRequest) toPipeline() pipeline.BrainstormRequest {
	return pipeline.BrainstormRequest{
		Issue:      firstNonBlank(r.Issue, r.IssueText),
		Hint:       strings.TrimSpace(r.CategoryHint),
		Creativity: creativity(r.Creativity, r.CreativityLevel),
		Count:      firstPositive(r.N, r.RequestedCount),
		Retrieval:  r.Retrieval,
		Debug:      r.Debug,
	}
}

type BrainstormResponse struct {
	RunID       string           `json:"run_id"`
	Candidates  []model.WireIdea `json:"candidates"`
	Diagnostics any              `json:"diagnostics"`
}

func NewBrainstormResponse(res pipeline.BrainstormResult) BrainstormResponse {
	return BrainstormResponse{
		RunID:       res.RunID,
		Candidates:  model.ToWireAll(res.Ideas),
		Diagnostics: res.Diagnostics,
	}
}

type ProbeRequest struct {
	Candidates []model.WireIdea `json:"candidates"`
	Ideas      []model.WireIdea `json:"ideas"`
	RunChecks  bool             `json:"run_checks"`
}

func (r ProbeRequest) ideas() []model.Idea {
	return model.FromWireAll(append(r.Candidates, r.Ideas...))
}

type ProbeResponse struct {
	RunID      string           `json:"run_id"`
	Candidates []model.WireIdea `json:"candidates"`
	Report     any              `json:"report"`
}

func NewProbeResponse(res pipeline.ProbeResult) ProbeResponse {
	return ProbeResponse{
		RunID:      res.RunID,
		Candidates: model.ToWireAll(res.Ideas),
		Report:     res.Report,
	}
}

type JudgeRequest struct {
	Issue      string           `json:"issue"`
	IssueText  string           `json:"issue_text"`
	Candidates []model.WireIdea `json:"candidates"`
	Ideas      []model.WireIdea `json:"ideas"`
}

func (r JudgeRequest) ideas() []model.Idea {
	return model.FromWireAll(append(r.Candidates, r.Ideas...))
}

// RankedItem is one entry of a ranking, with the scored candidate inline.
type RankedItem struct {
	ID        string             `json:"id"`
	Total     float64            `json:"total"`
	Scores    map[string]float64 `json:"scores"`
	Rationale string             `json:"rationale"`
	Idea      model.WireIdea     `json:"idea"`
}

type Ranking struct {
	RankedIDs      []string                      `json:"ranked_ids"`
	Scores         map[string]map[string]float64 `json:"scores"`
	Rationale      map[string]string             `json:"rationale"`
	Ranked         []RankedItem                  `json:"ranked"`
	Degraded       bool                          `json:"ranking_degraded"`
	DegradedReason string                        `json:"degraded_reason,omitempty"`
	Backend        *model.Backend                `json:"backend_identity,omitempty"`
}

type JudgeResponse struct {
	RunID string `json:"run_id"`
	Ranking
}

func NewJudgeResponse(res pipeline.JudgeResult) JudgeResponse {
	return JudgeResponse{RunID: res.RunID, Ranking: NewRanking(res.Verdict)}
}

type DiagnoseRequest struct {
	BrainstormRequest
	RunChecks      bool `json:"run_checks"`
	NoDisambiguate bool `json:"no_disambiguate"`
}

type DiagnoseResponse struct {
	RunID          string                   `json:"run_id"`
	Classification model.Classification     `json:"classification"`
	InputType      any                      `json:"input_type"`
	Category       string                   `json:"category"`
	KBSolution     *kb.Solution             `json:"kb_solution"`
	KnownFix       *kb.Match                `json:"known_fix,omitempty"`
	Candidates     []model.WireIdea         `json:"candidates"`
	Brainstorm     any                      `json:"brainstorm"`
	Probe          any                      `json:"probe"`
	Disambiguation *pipeline.Disambiguation `json:"disambiguation,omitempty"`
	Previews       any                      `json:"previews"`
	DurationMs     int64                    `json:"duration_ms"`
	Ranking
}

// NewRanking flattens a verdict into the ranking fields every ranked
// response carries.
func NewRanking(v judge.Verdict) Ranking {
	r := Ranking{
		RankedIDs:      v.IDs(),
		Scores:         make(map[string]map[string]float64, len(v.Ranked)),
		Rationale:      v.Rationale(),
		Ranked:         make([]RankedItem, 0, len(v.Ranked)),
		Degraded:       v.Degraded,
		DegradedReason: v.DegradedReason,
		Backend:        v.Backend,
	}
	for _, item := range v.Ranked {
		scores := axisMap(item.Scores)
		r.Scores[item.ID] = scores
		r.Ranked = append(r.Ranked, RankedItem{
			ID:        item.ID,
			Total:     item.Total,
			Scores:    scores,
			Rationale: item.Rationale,
			Idea:      model.ToWire(item.Idea),
		})
	}
	return r
}

// NewDiagnoseResponse is the wire form of a diagnose report.
func NewDiagnoseResponse(rep *pipeline.Report) DiagnoseResponse {
	var sol *kb.Solution
	if rep.KnownFix != nil {
		s := rep.KnownFix.Solution
		sol = &s
	}
	return DiagnoseResponse{
		RunID:          rep.RunID,
		KBSolution:     sol,
		KnownFix:       rep.KnownFix,
		Classification: rep.Classification,
		InputType:      rep.Input,
		Category:       rep.Category,
		Candidates:     model.ToWireAll(rep.Ideas),
		Brainstorm:     rep.Brainstorm,
		Probe:          rep.Probe,
		Disambiguation: rep.Disambiguation,
		Previews:       rep.Previews,
		DurationMs:     rep.DurationMs,
		Ranking:        NewRanking(rep.Verdict),
	}
}

func axisMap(in map[model.Axis]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// creativity defaults to 1 when neither spelling is present.
func creativity(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 1
}
