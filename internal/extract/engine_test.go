package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadnerd/internal/model"
)

func obj(i int) string {
	return fmt.Sprintf(`{"hypothesis": "Cause %d {with braces} and \"quotes\"", "category": "wifi", "why": "reason %d", "checks": ["nmcli dev status"], "fixes": ["nmcli radio wifi on"], "risk": "low"}`, i, i)
}

func numberedList(n int) string {
	var b strings.Builder
	b.WriteString("Here are the hypotheses:\n\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d. %s\n", i, obj(i))
	}
	b.WriteString("\nLet me know if you need more.")
	return b.String()
}

func jsonArray(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = obj(i + 1)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func assertUniqueIDs(t *testing.T, ideas []model.Idea) {
	t.Helper()
	seen := map[string]bool{}
	for _, idea := range ideas {
		require.NotEmpty(t, idea.ID)
		require.False(t, seen[idea.ID], "duplicate id %s", idea.ID)
		seen[idea.ID] = true
	}
}

func TestNumberedListWiFi(t *testing.T) {
	res := New(nil).Extract(numberedList(3), 3, nil)

	assert.Equal(t, TagFull, res.Tag)
	assert.Equal(t, "numbered", res.Strategy)
	require.Len(t, res.Ideas, 3)
	assertUniqueIDs(t, res.Ideas)

	first := res.Ideas[0]
	assert.Equal(t, `Cause 1 {with braces} and "quotes"`, first.Hypothesis)
	assert.Equal(t, "wifi", first.Category)
	assert.Equal(t, "reason 1", first.Rationale)
	assert.Equal(t, []string{"nmcli dev status"}, first.VerificationSteps)
	assert.Equal(t, []string{"nmcli radio wifi on"}, first.RemediationSteps)
	assert.Equal(t, model.RiskLow, first.Risk)
	assert.Empty(t, first.Evidence)
	assert.Empty(t, first.Scores)
}

func TestProseOnlyIsNone(t *testing.T) {
	raw := "The WiFi probably drops because of power management. Try turning it off and checking the router."
	res := New(nil).Extract(raw, 3, nil)

	assert.Equal(t, TagNone, res.Tag)
	assert.Empty(t, res.Ideas)
	assert.Empty(t, res.Strategy)
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		requested int
		strategy  string
		count     int
		tag       Tag
	}{
		{"array", jsonArray(2), 2, "direct", 2, TagFull},
		{"single object", obj(1), 3, "direct", 1, TagPartial},
		{"wrapper", `{"ideas": ` + jsonArray(3) + `}`, 3, "direct", 3, TagFull},
		{"fenced", "Sure!\n```json\n" + jsonArray(2) + "\n```\nDone.", 2, "fenced", 2, TagFull},
		{"fenced unclosed", "```\n" + jsonArray(2), 2, "fenced", 2, TagFull},
		{"json marker line", "Answer:\njson\n" + jsonArray(2), 2, "fenced", 2, TagFull},
		{"numbered with label", "1) Power saving: " + obj(1) + "\n2) Driver:\n   " + obj(2), 2, "numbered", 2, TagFull},
		{"prose with objects", "First " + obj(1) + " then " + obj(2) + " end", 4, "sweep", 2, TagPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(nil).Extract(tt.raw, tt.requested, nil)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Len(t, res.Ideas, tt.count)
			assert.Equal(t, tt.tag, res.Tag)
			assertUniqueIDs(t, res.Ideas)
		})
	}
}

func TestTruncatedArrayIsPartial(t *testing.T) {
	raw := jsonArray(3)
	raw = raw[:len(raw)-40]

	res := New(nil).Extract(raw, 3, nil)
	assert.Equal(t, TagPartial, res.Tag)
	assert.Equal(t, "sweep", res.Strategy)
	assert.Len(t, res.Ideas, 2)
	assert.GreaterOrEqual(t, res.Discarded, 1)
}

func TestTruncatedWrapperRecoversInnerObjects(t *testing.T) {
	raw := `{"ideas": [` + obj(1) + `, ` + obj(2) + `, {"hypothesis": "cut off`
	res := New(nil).Extract(raw, 3, nil)
	assert.Equal(t, TagPartial, res.Tag)
	assert.Len(t, res.Ideas, 2)
}

func TestSchemaViolationsDiscarded(t *testing.T) {
	raw := `[
		{"hypothesis": "no category"},
		{"category": "dns"},
		{"hypothesis": "bad checks", "category": "dns", "checks": 5},
		{"hypothesis": "bad risk", "category": "dns", "risk": 3},
		"just a string",
		{"hypothesis": "good", "category": "DNS", "rationale": "alias", "verification_steps": ["dig example.com"], "remediation_steps": "resolvectl flush-caches", "risk_level": "HIGH"}
	]`
	res := New(nil).Extract(raw, 3, nil)

	require.Len(t, res.Ideas, 1)
	assert.Equal(t, 5, res.Discarded)
	good := res.Ideas[0]
	assert.Equal(t, "dns", good.Category)
	assert.Equal(t, "alias", good.Rationale)
	assert.Equal(t, []string{"dig example.com"}, good.VerificationSteps)
	assert.Equal(t, []string{"resolvectl flush-caches"}, good.RemediationSteps)
	assert.Equal(t, model.RiskHigh, good.Risk)
}

func TestCommandObjectsInSteps(t *testing.T) {
	raw := `{"hypothesis": "h", "category": "network", "checks": [{"command": "ip route"}, {"cmd": "ip addr"}]}`
	res := New(nil).Extract(raw, 1, nil)
	require.Len(t, res.Ideas, 1)
	assert.Equal(t, []string{"ip route", "ip addr"}, res.Ideas[0].VerificationSteps)
}

func TestNeverMoreThanRequested(t *testing.T) {
	res := New(nil).Extract(jsonArray(8), 3, nil)
	assert.Len(t, res.Ideas, 3)
	assert.Equal(t, TagFull, res.Tag)
	assert.Equal(t, 8, res.Recovered)
}

func TestRequestedCountProperty(t *testing.T) {
	e := New(nil)
	formats := map[string]func(int) string{
		"array":    jsonArray,
		"numbered": numberedList,
		"fenced":   func(n int) string { return "```json\n" + jsonArray(n) + "\n```" },
		"prose":    func(n int) string { return "Ideas: " + strings.ReplaceAll(jsonArray(n), "},{", "} and {") },
	}
	for name, format := range formats {
		for n := 1; n <= 12; n++ {
			for _, extra := range []int{0, 2} {
				res := e.Extract(format(n+extra), n, nil)
				require.Len(t, res.Ideas, n, "%s n=%d extra=%d", name, n, extra)
				require.Equal(t, TagFull, res.Tag)
				assertUniqueIDs(t, res.Ideas)
			}
		}
	}
}

func TestTruncationNeverPanicsOrOvershoots(t *testing.T) {
	e := New(nil)
	inputs := []string{
		numberedList(4),
		"```json\n" + jsonArray(4) + "\n```",
		`{"ideas": ` + jsonArray(4) + `}`,
	}
	for _, full := range inputs {
		for cut := 0; cut <= len(full); cut++ {
			res := e.Extract(full[:cut], 3, nil)
			require.LessOrEqual(t, len(res.Ideas), 3, "cut=%d", cut)
			require.Equal(t, TagFor(len(res.Ideas), 3), res.Tag)
		}
	}
}

func TestGarbageNeverPanics(t *testing.T) {
	e := New(nil)
	inputs := []string{
		"",
		"{",
		"}}}}{{{{",
		strings.Repeat("{", 10000),
		`{"hypothesis": "\`,
		"1. {\n2. {\n3. }",
		"```\n```\n```",
		"json",
		"\x00\xff{\"a\":1}",
		`[1, 2, "three", null, {"hypothesis": null, "category": null}]`,
	}
	for _, in := range inputs {
		res := e.Extract(in, 5, nil)
		assert.LessOrEqual(t, len(res.Ideas), 5)
	}
}

func TestIDsUniqueAcrossCallsSharingSource(t *testing.T) {
	e := New(nil)
	ids := model.NewIDSource()
	a := e.Extract(jsonArray(6), 6, ids)
	b := e.Extract(jsonArray(6), 6, ids)
	assertUniqueIDs(t, append(a.Ideas, b.Ideas...))
}

func TestObjects(t *testing.T) {
	in := `noise {"a": "}"} more {"b": {"c": 1}} tail {"open": `
	got := Objects(in)
	require.Len(t, got, 2)
	for _, o := range got {
		var v map[string]any
		assert.NoError(t, json.Unmarshal([]byte(o), &v))
	}
}

func TestMaps(t *testing.T) {
	raw := "Scores:\n```json\n{\"assessments\": [{\"id\": \"a\", \"likelihood\": 0.8}, {\"id\": \"b\", \"likelihood\": 0.3}]}\n```"
	got := Maps(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["id"])

	assert.Nil(t, Maps("no json here"))
}
