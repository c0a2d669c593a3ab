package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRisk(t *testing.T) {
	tests := []struct {
		in   string
		want Risk
	}{
		{"low", RiskLow},
		{"  LOW ", RiskLow},
		{"High", RiskHigh},
		{"medium", RiskMedium},
		{"", RiskMedium},
		{"catastrophic?", RiskMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRisk(tt.in), "ParseRisk(%q)", tt.in)
	}
}

func TestRiskRank(t *testing.T) {
	assert.Less(t, RiskLow.Rank(), RiskMedium.Rank())
	assert.Less(t, RiskMedium.Rank(), RiskHigh.Rank())
}

func TestWireRoundTrip(t *testing.T) {
	idea := Idea{
		ID:                "a1b2c3d4",
		Category:          "wifi",
		Hypothesis:        "Power saving on the wireless adapter drops the link",
		Rationale:         "Disconnects happen on a fixed interval",
		VerificationSteps: []string{"iw dev wlan0 get power_save", "nmcli dev status"},
		RemediationSteps:  []string{"iw dev wlan0 set power_save off"},
		Risk:              RiskLow,
	}

	data, err := json.Marshal(ToWire(idea))
	require.NoError(t, err)

	var w WireIdea
	require.NoError(t, json.Unmarshal(data, &w))
	got := FromWire(w)

	assert.Equal(t, idea.ID, got.ID)
	assert.Equal(t, idea.Category, got.Category)
	assert.Equal(t, idea.Hypothesis, got.Hypothesis)
	assert.Equal(t, idea.Rationale, got.Rationale)
	assert.Equal(t, idea.VerificationSteps, got.VerificationSteps)
	assert.Equal(t, idea.RemediationSteps, got.RemediationSteps)
	assert.Equal(t, idea.Risk, got.Risk)
}

func TestToWireNeverEmitsNullSteps(t *testing.T) {
	data, err := json.Marshal(ToWire(Idea{ID: "x", Category: "dns", Hypothesis: "h"}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"checks":[]`)
	assert.Contains(t, string(data), `"fixes":[]`)
	assert.Contains(t, string(data), `"risk":"medium"`)
}

func TestCloneIsDeep(t *testing.T) {
	orig := Idea{
		VerificationSteps: []string{"ip addr"},
		Evidence:          []Evidence{{Command: "ip addr"}},
		Scores:            map[Axis]float64{AxisSafety: 0.5},
	}
	c := orig.Clone()
	c.VerificationSteps[0] = "changed"
	c.Evidence[0].Command = "changed"
	c.Scores[AxisSafety] = 1

	assert.Equal(t, "ip addr", orig.VerificationSteps[0])
	assert.Equal(t, "ip addr", orig.Evidence[0].Command)
	assert.Equal(t, 0.5, orig.Scores[AxisSafety])
}

func TestIDSourceUnique(t *testing.T) {
	s := NewIDSource("deadbeef")
	assert.False(t, s.Claim("deadbeef"))

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		id := s.Next()
		require.Len(t, id, 8)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestFromWireAllReassignsDuplicates(t *testing.T) {
	ideas := FromWireAll([]WireIdea{
		{ID: "same", Hypothesis: "a"},
		{ID: "same", Hypothesis: "b"},
		{Hypothesis: "c"},
	})
	require.Len(t, ideas, 3)
	assert.Equal(t, "same", ideas[0].ID)
	assert.NotEqual(t, "same", ideas[1].ID)
	assert.NotEmpty(t, ideas[2].ID)
	assert.NotEqual(t, ideas[1].ID, ideas[2].ID)
}
