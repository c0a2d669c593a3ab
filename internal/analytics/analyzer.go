// Package analytics summarizes stored run records: how often each backend
// fills the requested count, falls back, or degrades its ranking.
package analytics

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"roadnerd/internal/model"
	"roadnerd/internal/storage"
)

// BackendStats aggregates runs for one model and transport.
type BackendStats struct {
	Backend       string  `json:"backend"`
	Runs          int     `json:"runs"`
	AvgFill       float64 `json:"avg_fill"` // received / requested, 0.0 - 1.0
	RepairRate    float64 `json:"repair_rate"`
	FallbackRate  float64 `json:"fallback_rate"`
	DegradedRate  float64 `json:"degraded_rate"`
	AvgDurationMs int64   `json:"avg_duration_ms"`
}

// CategoryStats aggregates runs by committed category.
type CategoryStats struct {
	Category      string  `json:"category"`
	Runs          int     `json:"runs"`
	AvgConfidence float64 `json:"avg_confidence"`
	FallbackRate  float64 `json:"fallback_rate"`
}

// Suggestion is a tuning hint derived from the numbers.
type Suggestion struct {
	Severity string `json:"severity"` // "high", "medium", "low"
	Message  string `json:"message"`
}

type Summary struct {
	TotalRuns   int             `json:"total_runs"`
	Backends    []BackendStats  `json:"backends"`
	Categories  []CategoryStats `json:"categories"`
	Suggestions []Suggestion    `json:"suggestions,omitempty"`
}

// Analyzer reads runs from the history database.
type Analyzer struct {
	db *sql.DB
}

func NewAnalyzer(db *sql.DB) *Analyzer {
	return &Analyzer{db: db}
}

// Summary aggregates the runs matching opts.
func (a *Analyzer) Summary(opts storage.QueryOpts) (*Summary, error) {
	runs, err := storage.GetRecentRuns(a.db, opts)
	if err != nil {
		return nil, err
	}
	s := Summarize(runs)
	return &s, nil
}

type acc struct {
	runs, fillN                int
	fill, confidence           float64
	repair, fallback, degraded int
	duration                   int64
}

// Summarize is the pure aggregation behind Summary.
func Summarize(runs []storage.RunSummary) Summary {
	backends := map[string]*acc{}
	categories := map[string]*acc{}

	for _, r := range runs {
		key := r.Model + " (" + r.Transport + ")"
		if r.Model == "" {
			key = "unknown"
		}
		b := backends[key]
		if b == nil {
			b = &acc{}
			backends[key] = b
		}
		b.runs++
		b.duration += r.DurationMs
		if r.Requested > 0 {
			b.fill += min(1, float64(r.Received)/float64(r.Requested))
			b.fillN++
		}
		if r.RepairFired {
			b.repair++
		}
		if r.Fallback {
			b.fallback++
		}
		if r.Degraded {
			b.degraded++
		}

		cat := r.Category
		if cat == "" {
			cat = r.Label
		}
		if cat == "" {
			cat = "unknown"
		}
		c := categories[cat]
		if c == nil {
			c = &acc{}
			categories[cat] = c
		}
		c.runs++
		c.confidence += r.Confidence
		if r.Fallback {
			c.fallback++
		}
	}

	out := Summary{TotalRuns: len(runs), Backends: []BackendStats{}, Categories: []CategoryStats{}}
	for name, b := range backends {
		st := BackendStats{
			Backend:       name,
			Runs:          b.runs,
			RepairRate:    rate(b.repair, b.runs),
			FallbackRate:  rate(b.fallback, b.runs),
			DegradedRate:  rate(b.degraded, b.runs),
			AvgDurationMs: b.duration / int64(b.runs),
		}
		if b.fillN > 0 {
			st.AvgFill = b.fill / float64(b.fillN)
		}
		out.Backends = append(out.Backends, st)
	}
	for name, c := range categories {
		out.Categories = append(out.Categories, CategoryStats{
			Category:      name,
			Runs:          c.runs,
			AvgConfidence: c.confidence / float64(c.runs),
			FallbackRate:  rate(c.fallback, c.runs),
		})
	}

	sort.Slice(out.Backends, func(i, j int) bool {
		if out.Backends[i].Runs != out.Backends[j].Runs {
			return out.Backends[i].Runs > out.Backends[j].Runs
		}
		return out.Backends[i].Backend < out.Backends[j].Backend
	})
	sort.Slice(out.Categories, func(i, j int) bool {
		if out.Categories[i].Runs != out.Categories[j].Runs {
			return out.Categories[i].Runs > out.Categories[j].Runs
		}
		return out.Categories[i].Category < out.Categories[j].Category
	})

	out.Suggestions = suggest(out.Backends)
	return out
}

// minRuns is how many runs a backend needs before it gets suggestions.
const minRuns = 5

func suggest(backends []BackendStats) []Suggestion {
	var out []Suggestion
	for _, b := range backends {
		if b.Runs < minRuns {
			continue
		}
		switch {
		case b.FallbackRate >= 0.3:
			out = append(out, Suggestion{
				Severity: "high",
				Message:  fmt.Sprintf("%s fell back in %.0f%% of runs. Try the other transport or raise the token budget.", b.Backend, b.FallbackRate*100),
			})
		case b.AvgFill < 0.6:
			out = append(out, Suggestion{
				Severity: "medium",
				Message:  fmt.Sprintf("%s returns %.0f%% of the requested candidates on average. Consider raising tokens per idea.", b.Backend, b.AvgFill*100),
			})
		}
		if b.DegradedRate >= 0.3 {
			out = append(out, Suggestion{
				Severity: "medium",
				Message:  fmt.Sprintf("%s ranking degraded in %.0f%% of runs; judge assessments are not parseable.", b.Backend, b.DegradedRate*100),
			})
		}
	}
	return out
}

// LoadRunLog reads a JSONL run log, skipping lines that do not decode.
func LoadRunLog(path string) ([]model.RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.RunRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

// SummarizeRecords aggregates records read from a run log.
func SummarizeRecords(recs []model.RunRecord) Summary {
	runs := make([]storage.RunSummary, len(recs))
	for i, r := range recs {
		runs[i] = storage.SummaryOf(r)
	}
	return Summarize(runs)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
