package judge

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadnerd/internal/llm"
	"roadnerd/internal/model"
	"roadnerd/internal/prompt"
)

type fakeCompleter struct {
	text  string
	err   error
	calls []llm.Call
}

func (f *fakeCompleter) Complete(_ context.Context, call llm.Call) (*llm.Completion, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Text:     f.text,
		Backend:  model.Backend{Kind: "ollama", Model: "llama3.2:3b", Transport: "completion"},
		Sampling: model.Sampling{Temperature: 0, TopP: 0.5},
	}, nil
}

func newJudge(c Completer) *Judge {
	return New(c, prompt.NewStore(nil, nil), nil)
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestHeuristicScores(t *testing.T) {
	idea := model.Idea{
		ID:                "x",
		Category:          "wifi",
		Hypothesis:        "power saving on the wifi adapter",
		VerificationSteps: []string{"iw dev wlan0 get power_save"},
		RemediationSteps:  []string{"sudo iw dev wlan0 set power_save off"},
		Risk:              model.RiskLow,
	}

	v := newJudge(nil).Judge(context.Background(), "wifi drops after suspend", []model.Idea{idea})

	require.Len(t, v.Ranked, 1)
	want := map[model.Axis]float64{
		model.AxisSafety:      0.85,
		model.AxisSuccess:     0.8,
		model.AxisCost:        0.8,
		model.AxisDeterminism: 0.8,
	}
	if diff := cmp.Diff(want, v.Ranked[0].Scores); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.815, v.Ranked[0].Total)
	assert.Contains(t, v.Ranked[0].Rationale, "risk low")
	assert.Equal(t, want, v.Ranked[0].Idea.Scores)
}

func TestModelAssessmentReorders(t *testing.T) {
	fc := &fakeCompleter{text: `[{"id":"a","likelihood":0.1,"determinism":0.5},{"id":"b","likelihood":0.9,"determinism":0.5}]`}
	ideas := []model.Idea{
		{ID: "a", Category: "wifi", Hypothesis: "driver crash", Risk: model.RiskLow},
		{ID: "b", Category: "wifi", Hypothesis: "driver crash", Risk: model.RiskLow},
	}

	v := newJudge(fc).Judge(context.Background(), "wifi keeps dropping", ideas)

	assert.False(t, v.Degraded)
	if diff := cmp.Diff([]string{"b", "a"}, v.IDs()); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, fc.calls, 1)
	call := fc.calls[0]
	require.NotNil(t, call.Overrides.Temperature)
	assert.Equal(t, 0.0, *call.Overrides.Temperature)
	require.NotNil(t, call.Overrides.Seed)
	assert.True(t, call.Strict)
	assert.Contains(t, call.Prompt, "wifi keeps dropping")
	assert.Contains(t, call.Prompt, `"id": "a"`)
	require.NotNil(t, v.Backend)
	assert.Equal(t, "llama3.2:3b", v.Backend.Model)
}

func TestTiesBrokenByID(t *testing.T) {
	fc := &fakeCompleter{text: `{"assessments":[{"id":"b","likelihood":0.5},{"id":"a","likelihood":0.5}]}`}
	ideas := []model.Idea{
		{ID: "b", Category: "dns", Hypothesis: "stale cache"},
		{ID: "a", Category: "dns", Hypothesis: "stale cache"},
	}

	v := newJudge(fc).Judge(context.Background(), "websites fail to load", ideas)
	assert.Equal(t, []string{"a", "b"}, v.IDs())
	assert.Equal(t, v.Ranked[0].Total, v.Ranked[1].Total)
}

func TestDegradedOnFailure(t *testing.T) {
	fc := &fakeCompleter{err: &llm.Failure{Kind: llm.BackendTimeout, Identity: model.Backend{Kind: "ollama"}}}
	ideas := []model.Idea{
		{ID: "b", Category: "wifi", Hypothesis: "h1", Risk: model.RiskLow},
		{ID: "a", Category: "wifi", Hypothesis: "h2", Risk: model.RiskHigh, Evidence: []model.Evidence{{Command: "ip addr"}}},
		{ID: "c", Category: "wifi", Hypothesis: "h3", Risk: model.RiskLow, Evidence: []model.Evidence{{Command: "rfkill list"}}},
	}

	v := newJudge(fc).Judge(context.Background(), "wifi broken", ideas)

	assert.True(t, v.Degraded)
	assert.Equal(t, string(llm.BackendTimeout), v.FailureKind)
	assert.NotEmpty(t, v.DegradedReason)
	assert.Equal(t, []string{"c", "b", "a"}, v.IDs())
}

func TestDegradedOnUnusableAssessment(t *testing.T) {
	fc := &fakeCompleter{text: `I think the first one is best.`}
	ideas := []model.Idea{{ID: "a", Category: "dns", Hypothesis: "h"}}

	v := newJudge(fc).Judge(context.Background(), "dns", ideas)
	assert.True(t, v.Degraded)
	assert.Contains(t, v.DegradedReason, "no usable assessment")
	assert.Empty(t, v.FailureKind)
}

func TestUnitScore(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.4, 0.4, true},
		{85.0, 0.85, true},
		{"70%", 0.7, true},
		{"0.25", 0.25, true},
		{-1.0, 0, false},
		{250.0, 0, false},
		{"high", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := unitScore(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}
}

func TestScoresBounded(t *testing.T) {
	ideas := []model.Idea{
		{ID: "1", Category: "boot", Hypothesis: "grub", RemediationSteps: []string{"sudo rm -rf /boot", "sudo a", "sudo b", "sudo c", "factory reset"}, Risk: model.RiskHigh},
		{ID: "2", Category: "wifi", Hypothesis: "wifi wifi wifi", VerificationSteps: []string{"netsh wlan show"}, Evidence: []model.Evidence{{TimedOut: true, ExitStatus: 124}}},
		{ID: "3", Category: "", Hypothesis: ""},
	}
	v := newJudge(nil).Judge(context.Background(), "", ideas)

	for _, r := range v.Ranked {
		for _, axis := range model.Axes {
			assert.GreaterOrEqual(t, r.Scores[axis], 0.0)
			assert.LessOrEqual(t, r.Scores[axis], 1.0)
		}
		assert.GreaterOrEqual(t, r.Total, 0.0)
		assert.LessOrEqual(t, r.Total, 1.0)
	}
}

func TestDeterministic(t *testing.T) {
	fc := &fakeCompleter{text: `[{"id":"a","likelihood":0.3},{"id":"b","likelihood":0.3},{"id":"c","likelihood":0.8}]`}
	ideas := []model.Idea{
		{ID: "c", Category: "network", Hypothesis: "gateway down"},
		{ID: "a", Category: "network", Hypothesis: "cable"},
		{ID: "b", Category: "network", Hypothesis: "dhcp"},
	}
	j := newJudge(fc)
	first := j.Judge(context.Background(), "no internet", ideas)
	for range 5 {
		again := j.Judge(context.Background(), "no internet", ideas)
		if diff := cmp.Diff(first.IDs(), again.IDs()); diff != "" {
			t.Fatalf("ranking changed:\n%s", diff)
		}
	}
}

func TestEmpty(t *testing.T) {
	v := newJudge(&fakeCompleter{}).Judge(context.Background(), "x", nil)
	assert.Empty(t, v.Ranked)
	assert.False(t, v.Degraded)
}
