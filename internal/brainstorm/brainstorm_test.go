package brainstorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadnerd/internal/config"
	"roadnerd/internal/extract"
	"roadnerd/internal/llm"
	"roadnerd/internal/model"
	"roadnerd/internal/prompt"
	"roadnerd/internal/sysinfo"
)

type reply struct {
	text string
	err  error
}

type scripted struct {
	replies []reply
	calls   []llm.Call
}

func (s *scripted) Complete(_ context.Context, call llm.Call) (*llm.Completion, error) {
	s.calls = append(s.calls, call)
	if len(s.calls) > len(s.replies) {
		return nil, &llm.Failure{Kind: llm.EmptyResponse, Err: errors.New("script exhausted")}
	}
	r := s.replies[len(s.calls)-1]
	if r.err != nil {
		return nil, r.err
	}
	sampling := model.Sampling{MaxTokens: 512}
	if call.Overrides.Temperature != nil {
		sampling.Temperature = *call.Overrides.Temperature
	}
	if call.Overrides.TopP != nil {
		sampling.TopP = *call.Overrides.TopP
	}
	return &llm.Completion{
		Text:     r.text,
		Backend:  model.Backend{Kind: "ollama", Model: "llama3.2:3b", Transport: "completion"},
		Sampling: sampling,
	}, nil
}

func newOrchestrator(t *testing.T, c Completer, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(c, prompt.NewStore(nil, nil), config.BrainstormConfig{MaxCount: 12, DefaultCount: 5, IssueLimit: 4000}, opts...)
	require.NoError(t, err)
	return o
}

func ideaJSON(h string) string {
	return fmt.Sprintf(`{"hypothesis":%q,"category":"wifi","why":"w","checks":["nmcli dev status"],"fixes":[],"risk":"low"}`, h)
}

func TestSamplingMonotonic(t *testing.T) {
	prevT, prevP := -1.0, -1.0
	for c := 0; c <= MaxCreativity; c++ {
		temp, topP := Sampling(c)
		assert.GreaterOrEqual(t, temp, prevT)
		assert.GreaterOrEqual(t, topP, prevP)
		prevT, prevP = temp, topP
	}
	temp, topP := Sampling(99)
	assert.Equal(t, 1.0, temp)
	assert.Equal(t, 1.0, topP)
	temp, _ = Sampling(-4)
	assert.Equal(t, 0.0, temp)
}

func TestNumberedListIsFull(t *testing.T) {
	raw := "1. " + ideaJSON("power saving") + "\n2. " + ideaJSON("driver crash") + "\n3. " + ideaJSON("weak signal")
	s := &scripted{replies: []reply{{text: raw}}}
	o := newOrchestrator(t, s)

	res := o.Brainstorm(context.Background(), Request{Issue: "WiFi disconnects every few minutes", Hint: "wifi", Creativity: 1, Count: 3})

	assert.Len(t, res.Ideas, 3)
	assert.Equal(t, extract.TagFull, res.Diagnostics.Tag)
	assert.False(t, res.Diagnostics.RepairFired)
	assert.False(t, res.Diagnostics.Fallback)
	require.Len(t, s.calls, 1)
	assert.Contains(t, s.calls[0].Prompt, "exactly 3")
	assert.Contains(t, s.calls[0].Prompt, "WiFi disconnects every few minutes")
	assert.Equal(t, 3, s.calls[0].Count)
	assert.Equal(t, 0.3, *s.calls[0].Overrides.Temperature)
	assert.Equal(t, "brainstorm.wifi.txt", res.Diagnostics.Template)
}

func TestProseRepairThenFallback(t *testing.T) {
	s := &scripted{replies: []reply{
		{text: "You should probably restart your router."},
		{text: "Sorry, I cannot produce JSON."},
	}}
	o := newOrchestrator(t, s)

	res := o.Brainstorm(context.Background(), Request{Issue: "no internet", Hint: "network", Count: 4})

	require.Len(t, s.calls, 2)
	assert.True(t, res.Diagnostics.RepairFired)
	assert.Contains(t, s.calls[1].Prompt, "exactly 4 additional")
	assert.Equal(t, 0.0, *s.calls[1].Overrides.Temperature)

	require.Len(t, res.Ideas, 1)
	assert.True(t, res.Diagnostics.Fallback)
	assert.Equal(t, extract.TagNone, res.Diagnostics.Tag)
	fb := res.Ideas[0]
	assert.Equal(t, "You should probably restart your router.", fb.Hypothesis)
	assert.Equal(t, "network", fb.Category)
	assert.Equal(t, model.RiskMedium, fb.Risk)
	assert.NotEmpty(t, fb.ID)
	assert.NotNil(t, fb.VerificationSteps)
}

func TestPartialRepairMerges(t *testing.T) {
	s := &scripted{replies: []reply{
		{text: "[" + ideaJSON("power saving") + "," + ideaJSON("driver crash") + `, {"hypothesis": "trunc`},
		{text: "[" + ideaJSON("Driver crash!") + "," + ideaJSON("channel congestion") + "," + ideaJSON("weak signal") + "]"},
	}}
	o := newOrchestrator(t, s)

	res := o.Brainstorm(context.Background(), Request{Issue: "wifi drops", Hint: "wifi", Count: 4})

	assert.True(t, res.Diagnostics.RepairFired)
	assert.Equal(t, 2, res.Diagnostics.RepairRecovered)
	assert.Equal(t, extract.TagFull, res.Diagnostics.Tag)
	require.Len(t, res.Ideas, 4)

	var hyps []string
	ids := map[string]bool{}
	for _, idea := range res.Ideas {
		hyps = append(hyps, idea.Hypothesis)
		ids[idea.ID] = true
	}
	assert.Equal(t, []string{"power saving", "driver crash", "channel congestion", "weak signal"}, hyps)
	assert.Len(t, ids, 4)
	assert.Contains(t, s.calls[1].Prompt, "- power saving")
	assert.Equal(t, 2, s.calls[1].Count)
}

func TestBackendFailureSkipsRepair(t *testing.T) {
	s := &scripted{replies: []reply{{err: &llm.Failure{Kind: llm.BackendUnreachable, Err: errors.New("connection refused")}}}}
	o := newOrchestrator(t, s)

	res := o.Brainstorm(context.Background(), Request{Issue: "laptop will not boot", Count: 3})

	assert.Len(t, s.calls, 1)
	assert.False(t, res.Diagnostics.RepairFired)
	assert.True(t, res.Diagnostics.Fallback)
	assert.Equal(t, []string{string(llm.BackendUnreachable)}, res.Diagnostics.Failures)
	require.Len(t, res.Ideas, 1)
	assert.Equal(t, GeneralCategory, res.Ideas[0].Category)
	assert.Contains(t, res.Ideas[0].Hypothesis, "backend_unreachable")
}

func TestCountClamped(t *testing.T) {
	o := newOrchestrator(t, &scripted{})
	assert.Equal(t, 5, o.Count(0))
	assert.Equal(t, 12, o.Count(50))
	assert.Equal(t, 1, o.Count(-3))
	assert.Equal(t, 7, o.Count(7))
}

func TestNeverMoreThanRequested(t *testing.T) {
	var parts []string
	for i := range 10 {
		parts = append(parts, ideaJSON(fmt.Sprintf("cause %d", i)))
	}
	s := &scripted{replies: []reply{{text: "[" + strings.Join(parts, ",") + "]"}}}
	o := newOrchestrator(t, s)

	res := o.Brainstorm(context.Background(), Request{Issue: "x", Count: 2})
	assert.Len(t, res.Ideas, 2)
	assert.Len(t, s.calls, 1)
}

func TestPromptCarriesContext(t *testing.T) {
	s := &scripted{replies: []reply{{text: "[" + ideaJSON("a") + "]"}}}
	o := newOrchestrator(t, s, WithSystemInfo(sysinfo.Static{
		Platform:     "ubuntu 24.04",
		OS:           "linux",
		Kernel:       "6.8.0",
		Connectivity: &sysinfo.Connectivity{DNS: sysinfo.DNSFailed, Gateway: sysinfo.GatewayConfigured, Internet: sysinfo.InternetReachable},
	}))

	res := o.Brainstorm(context.Background(), Request{
		Issue:     "dns fails password=hunter22",
		Hint:      "dns",
		Count:     1,
		Retrieval: "resolv.conf is managed by systemd-resolved",
		Debug:     true,
	})

	p := s.calls[0].Prompt
	assert.Contains(t, p, "Kernel: 6.8.0")
	assert.Contains(t, p, "Connectivity: DNS=failed, gateway=configured, internet=reachable")
	assert.Contains(t, p, "systemd-resolved")
	assert.Contains(t, p, `"hypothesis"`)
	assert.NotContains(t, p, "hunter22")
	assert.Equal(t, p, res.Diagnostics.Prompt)
	assert.NotEmpty(t, res.Diagnostics.Raw)
}

func TestSharedIDSource(t *testing.T) {
	s := &scripted{replies: []reply{
		{text: "[" + ideaJSON("a") + "]"},
		{text: "[" + ideaJSON("b") + "]"},
	}}
	o := newOrchestrator(t, s)
	ids := model.NewIDSource()

	first := o.Brainstorm(context.Background(), Request{Issue: "x", Count: 1, IDs: ids})
	second := o.Brainstorm(context.Background(), Request{Issue: "x", Count: 1, IDs: ids})
	assert.NotEqual(t, first.Ideas[0].ID, second.Ideas[0].ID)
}

func TestMerge(t *testing.T) {
	base := []model.Idea{{ID: "1", Hypothesis: "Stale DNS cache"}}
	extra := []model.Idea{{ID: "2", Hypothesis: "stale dns cache."}, {ID: "3", Hypothesis: "wrong resolver"}, {ID: "4", Hypothesis: "firewall"}}

	got := Merge(base, extra, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
