package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"roadnerd/internal/analytics"
	"roadnerd/internal/judge"
	"roadnerd/internal/kb"
	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/probe"
	"roadnerd/internal/safety"
	"roadnerd/internal/storage"
)

var idea = model.Idea{
	ID:                "aaaa1111",
	Category:          "wifi",
	Hypothesis:        "Power saving drops the link",
	VerificationSteps: []string{"iw dev wlan0 get power_save"},
	RemediationSteps:  []string{"sudo rm -rf /etc/NetworkManager"},
	Risk:              model.RiskHigh,
	Evidence: []model.Evidence{{
		Command:       "iw dev wlan0 get power_save",
		StdoutExcerpt: "Power save: on",
	}},
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, 80)
	p.Verbose = true

	p.Report(&pipeline.Report{
		RunID:          "42",
		Classification: model.Classification{TopLabel: "wifi", Confidence: 0.8, Strategy: "heuristic"},
		Category:       "wifi",
		KnownFix: &kb.Match{
			Entry:    "network_issues",
			Solution: kb.Solution{Name: "Restart NetworkManager", Commands: []string{"sudo systemctl restart NetworkManager"}, Check: "nmcli dev status"},
		},
		Probe: probe.Report{Executed: 1},
		Verdict: judge.Verdict{
			Ranked:         []judge.Ranked{{ID: idea.ID, Total: 0.5, Idea: idea, Scores: map[model.Axis]float64{model.AxisSafety: 0.2}}},
			Degraded:       true,
			DegradedReason: "model assessment failed",
		},
		Previews: map[string][]safety.PreviewAction{idea.ID: safety.New().Preview(idea)},
	})

	out := buf.String()
	for _, want := range []string{
		"run 42",
		"Known fix",
		"Restart NetworkManager",
		"check: nmcli dev status",
		"fix:   sudo systemctl restart NetworkManager",
		"wifi",
		"aaaa1111",
		"Power saving drops the link",
		"iw dev wlan0 get power_save",
		"Power save: on",
		"Ranking is heuristic only: model assessment failed",
		"!!",
		"not run",
		"safety 0.20",
	} {
		assert.Contains(t, out, want)
	}
}

func TestProbeReportDryRun(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 80).ProbeReport(probe.Report{DryRun: true})
	assert.Contains(t, buf.String(), "dry run")
}

func TestRunsTable(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 120).Runs([]storage.RunSummary{
		{ID: "1", Timestamp: time.Now(), Operation: "diagnose", Model: "llama3.2:3b", Requested: 5, Received: 3, Label: "dns", Fallback: true},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "MODEL")
	assert.Contains(t, lines[1], "3/5")
	assert.Contains(t, lines[1], "dns")
	assert.Contains(t, lines[1], "fallback")
}

func TestRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 80).Runs(nil)
	assert.Contains(t, buf.String(), "no runs recorded")
}

func TestRun(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 80).Run(&model.RunRecord{
		ID:             "7",
		Operation:      "judge",
		RequestedCount: 2,
		Candidates: []model.WireIdea{
			{ID: "b", Hypothesis: "second", Risk: model.RiskLow},
			{ID: "a", Hypothesis: "first", Risk: model.RiskMedium},
		},
		Ranking:  []string{"a", "b"},
		Degraded: true,
	})

	out := buf.String()
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "ranking was degraded")
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 100).Stats(&analytics.Summary{
		TotalRuns: 6,
		Backends:  []analytics.BackendStats{{Backend: "llama3.2:3b (completion)", Runs: 6, AvgFill: 0.5, FallbackRate: 0.5}},
		Suggestions: []analytics.Suggestion{
			{Severity: "medium", Message: "fill is low"},
			{Severity: "high", Message: "fallback is frequent"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "6 runs")
	assert.Contains(t, out, "50%")
	assert.Less(t, strings.Index(out, "fallback is frequent"), strings.Index(out, "fill is low"))
}

func TestMinimumWidth(t *testing.T) {
	p := New(&bytes.Buffer{}, 10)
	assert.Equal(t, minPanelWidth, p.Width)
}

func TestTimeline(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, 80)

	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	p.Timeline([]pipeline.Event{
		{Type: pipeline.EventStageStart, Stage: pipeline.StageBrainstorm, Timestamp: t0},
		{Type: pipeline.EventStageComplete, Stage: pipeline.StageBrainstorm, Timestamp: t0.Add(1500 * time.Millisecond)},
		{Type: pipeline.EventStageStart, Stage: pipeline.StageJudge, Timestamp: t0.Add(2 * time.Second)},
		{Type: pipeline.EventStageDegraded, Stage: pipeline.StageJudge, Detail: "backend_unreachable"},
		{Type: pipeline.EventStageComplete, Stage: pipeline.StageJudge, Timestamp: t0.Add(2250 * time.Millisecond)},
		{Type: pipeline.EventRunRecorded, Stage: pipeline.StageRecord},
	})

	out := buf.String()
	assert.Contains(t, out, "brainstorm")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "degraded: backend_unreachable")
	assert.Contains(t, out, "250ms")
	assert.NotContains(t, out, "record")
}

func TestTimelineEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 80).Timeline(nil)
	assert.Empty(t, buf.String())
}
