package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roadnerd/internal/httpapi"
)

// Case is one entry of a YAML case file.
type Case struct {
	ID    string `yaml:"id" json:"id"`
	Issue string `yaml:"issue" json:"issue"`
	Hint  string `yaml:"hint,omitempty" json:"hint,omitempty"`
	Count int    `yaml:"n,omitempty" json:"n,omitempty"`
	// RunChecks defaults to false so suites never touch the host.
	RunChecks bool `yaml:"run_checks,omitempty" json:"run_checks,omitempty"`
	// ExpectAny passes the case when any pattern matches the candidates'
	// text, case-insensitively.
	ExpectAny      []string `yaml:"expect_any,omitempty" json:"expect_any,omitempty"`
	ExpectCategory string   `yaml:"expect_category,omitempty" json:"expect_category,omitempty"`
	MinCandidates  int      `yaml:"min_candidates,omitempty" json:"min_candidates,omitempty"`
	Tags           []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// LoadCases reads a case file. Cases without an id are numbered.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range cases {
		if strings.TrimSpace(cases[i].Issue) == "" {
			return nil, fmt.Errorf("case %d has no issue", i+1)
		}
		if cases[i].ID == "" {
			cases[i].ID = fmt.Sprintf("case-%d", i+1)
		}
	}
	return cases, nil
}

// Filter keeps cases carrying tag. An empty tag keeps everything.
func Filter(cases []Case, tag string) []Case {
	if tag == "" {
		return cases
	}
	var out []Case
	for _, c := range cases {
		for _, t := range c.Tags {
			if t == tag {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Eval is the verdict on one case.
type Eval struct {
	Pass       bool     `json:"pass"`
	Matched    string   `json:"matched,omitempty"`
	Failures   []string `json:"failures,omitempty"`
	Candidates int      `json:"candidates"`
	TokensEst  int      `json:"tokens_est"`
}

// Evaluate checks a diagnose response against the case's expectations.
func Evaluate(c Case, resp httpapi.DiagnoseResponse) Eval {
	text := candidateText(resp)
	ev := Eval{Candidates: len(resp.Candidates), TokensEst: len(strings.Fields(text))}

	if len(c.ExpectAny) > 0 {
		for _, pat := range c.ExpectAny {
			re, err := regexp.Compile("(?i)" + pat)
			if err != nil {
				ev.Failures = append(ev.Failures, fmt.Sprintf("bad pattern %q: %v", pat, err))
				continue
			}
			if re.MatchString(text) {
				ev.Matched = pat
				break
			}
		}
		if ev.Matched == "" {
			ev.Failures = append(ev.Failures, "no expected pattern matched")
		}
	}
	if c.ExpectCategory != "" && !strings.EqualFold(c.ExpectCategory, resp.Category) {
		ev.Failures = append(ev.Failures, fmt.Sprintf("category %q, want %q", resp.Category, c.ExpectCategory))
	}
	if c.MinCandidates > 0 && len(resp.Candidates) < c.MinCandidates {
		ev.Failures = append(ev.Failures, fmt.Sprintf("%d candidates, want at least %d", len(resp.Candidates), c.MinCandidates))
	}
	ev.Pass = len(ev.Failures) == 0
	return ev
}

func candidateText(resp httpapi.DiagnoseResponse) string {
	var b strings.Builder
	for _, c := range resp.Candidates {
		b.WriteString(c.Hypothesis)
		b.WriteByte('\n')
		b.WriteString(c.Why)
		b.WriteByte('\n')
		for _, s := range c.Checks {
			b.WriteString(s)
			b.WriteByte('\n')
		}
		for _, s := range c.Fixes {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Record is one JSONL line of suite output.
type Record struct {
	Mode      string                    `json:"mode"`
	Timestamp time.Time                 `json:"timestamp"`
	Tag       string                    `json:"tag"`
	Case      Case                      `json:"case"`
	Status    map[string]any            `json:"status"`
	Response  *httpapi.DiagnoseResponse `json:"response,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Eval      Eval                      `json:"eval"`
	LatencyMs int64                     `json:"latency_ms"`
}

// Client talks to a running server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

func (c *Client) Diagnose(ctx context.Context, req httpapi.DiagnoseRequest) (*httpapi.DiagnoseResponse, error) {
	var out httpapi.DiagnoseResponse
	if err := c.do(ctx, http.MethodPost, "/api/diagnose", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RunCase diagnoses one case. Transport errors fail the case, not the suite.
func RunCase(ctx context.Context, c *Client, status map[string]any, tc Case, tag string) Record {
	rec := Record{Mode: "prompt_suite", Timestamp: time.Now().UTC(), Tag: tag, Case: tc, Status: status}

	req := httpapi.DiagnoseRequest{RunChecks: tc.RunChecks}
	req.Issue = tc.Issue
	req.CategoryHint = tc.Hint
	req.N = tc.Count

	start := time.Now()
	resp, err := c.Diagnose(ctx, req)
	rec.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
		rec.Eval = Eval{Failures: []string{err.Error()}}
		return rec
	}
	rec.Response = resp
	rec.Eval = Evaluate(tc, *resp)
	return rec
}

// ResultLog appends records to <dir>/suite_runs/YYYYMMDD.jsonl.
type ResultLog struct {
	path string
}

func NewResultLog(dir string, now time.Time) (*ResultLog, error) {
	dir = filepath.Join(dir, "suite_runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	return &ResultLog{path: filepath.Join(dir, now.UTC().Format("20060102")+".jsonl")}, nil
}

func (l *ResultLog) Path() string {
	return l.path
}

func (l *ResultLog) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
