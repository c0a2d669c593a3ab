package model

import "time"

// LabelScore is one classifier label with its score.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classification is the classifier's verdict. Candidates are sorted by
// score descending and TopLabel always equals the first label.
type Classification struct {
	TopLabel   string       `json:"top_label"`
	Confidence float64      `json:"confidence"`
	Candidates []LabelScore `json:"candidate_labels"`
	Strategy   string       `json:"strategy,omitempty"`
}

// Unknown is the result for input with no usable signal.
func Unknown() Classification {
	return Classification{TopLabel: "unknown", Confidence: 0, Candidates: []LabelScore{}}
}

// Backend identifies which model and transport produced text.
type Backend struct {
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	Transport string `json:"transport"`
}

// Sampling is the effective set of generation parameters for a call.
type Sampling struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	Seed        *int    `json:"seed,omitempty"`
}

// RunRecord is the audit line written once per pipeline invocation.
type RunRecord struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Operation      string          `json:"operation"`
	Issue          string          `json:"issue,omitempty"`
	Backend        Backend         `json:"backend_identity"`
	Sampling       Sampling        `json:"sampling_parameters"`
	RequestedCount int             `json:"requested_count"`
	Candidates     []WireIdea      `json:"candidates"`
	Ranking        []string        `json:"ranking"`
	Classification *Classification `json:"classification"`
	ExtractionTag  string          `json:"extraction_tag,omitempty"`
	RepairFired    bool            `json:"repair_fired"`
	Fallback       bool            `json:"fallback"`
	Degraded       bool            `json:"ranking_degraded"`
	Category       string          `json:"category,omitempty"`
	KnownFix       string          `json:"known_fix,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
}

// Received is the number of candidates the run produced.
func (r RunRecord) Received() int {
	return len(r.Candidates)
}
