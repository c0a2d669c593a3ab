// Package model holds the data shared by every pipeline stage: candidate
// ideas, the evidence attached to them, classifier output and run records.
package model

import "strings"

// Risk is the declared risk level of a candidate's remediation.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// ParseRisk normalizes free-form model output. Anything unrecognized is medium.
func ParseRisk(s string) Risk {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "safe", "minimal":
		return RiskLow
	case "high", "dangerous", "severe":
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Rank orders risks from safest (0) to riskiest (2).
func (r Risk) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskHigh:
		return 2
	default:
		return 1
	}
}

// Axis names one of the judge's scoring dimensions.
type Axis string

const (
	AxisSafety      Axis = "safety"
	AxisSuccess     Axis = "success_likelihood"
	AxisCost        Axis = "cost"
	AxisDeterminism Axis = "determinism"
)

// Axes lists the scoring axes in a fixed order.
var Axes = []Axis{AxisSafety, AxisSuccess, AxisCost, AxisDeterminism}

// Evidence is the captured result of one executed verification step.
type Evidence struct {
	Command       string `json:"command"`
	StdoutExcerpt string `json:"stdout_excerpt"`
	ExitStatus    int    `json:"exit_status"`
	Truncated     bool   `json:"truncated"`
	TimedOut      bool   `json:"timed_out,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
}

// Succeeded reports whether the command ran to completion with exit status 0.
func (e Evidence) Succeeded() bool {
	return !e.TimedOut && e.ExitStatus == 0
}

// Idea is a single root-cause hypothesis.
type Idea struct {
	ID                string
	Category          string
	Hypothesis        string
	Rationale         string
	VerificationSteps []string
	RemediationSteps  []string
	Risk              Risk
	Evidence          []Evidence
	Scores            map[Axis]float64
}

// HasEvidence reports whether any check output is attached.
func (i Idea) HasEvidence() bool {
	return len(i.Evidence) > 0
}

// Clone returns a deep copy so later stages never share slices or maps
// with the input they were given.
func (i Idea) Clone() Idea {
	out := i
	out.VerificationSteps = cloneStrings(i.VerificationSteps)
	out.RemediationSteps = cloneStrings(i.RemediationSteps)
	if i.Evidence != nil {
		out.Evidence = make([]Evidence, len(i.Evidence))
		copy(out.Evidence, i.Evidence)
	}
	if i.Scores != nil {
		out.Scores = make(map[Axis]float64, len(i.Scores))
		for k, v := range i.Scores {
			out.Scores[k] = v
		}
	}
	return out
}

// CloneAll deep-copies a slice of ideas.
func CloneAll(ideas []Idea) []Idea {
	if ideas == nil {
		return nil
	}
	out := make([]Idea, len(ideas))
	for i, idea := range ideas {
		out[i] = idea.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
