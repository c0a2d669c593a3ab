// Package probe gathers evidence for candidate ideas by running their
// verification steps, provided each one is an allow-listed read-only
// diagnostic. Remediation steps are never executed.
package probe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"roadnerd/internal/config"
	"roadnerd/internal/executor"
	"roadnerd/internal/llm"
	"roadnerd/internal/logger"
	"roadnerd/internal/model"
)

// Status is the outcome of one proposed verification step.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timeout"
	StatusSkipped  Status = "skipped"
)

// CommandStatus records what happened to one distinct proposed command.
type CommandStatus struct {
	Command   string   `json:"command"`
	Status    Status   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Owners    []string `json:"owners,omitempty"`
}

// Report summarizes a probe pass.
type Report struct {
	Executed  int             `json:"executed"`
	Rejected  int             `json:"rejected"`
	TimedOut  int             `json:"timed_out"`
	Truncated int             `json:"truncated"`
	Skipped   int             `json:"skipped"`
	DryRun    bool            `json:"dry_run"`
	Commands  []CommandStatus `json:"commands"`
}

type Prober struct {
	allow     *AllowList
	runner    executor.Runner
	limits    executor.Limits
	maxChecks int
	sanitizer *llm.Sanitizer
	log       *zap.Logger
}

type Option func(*Prober)

func WithRunner(r executor.Runner) Option {
	return func(p *Prober) { p.runner = r }
}

func WithAllowList(a *AllowList) Option {
	return func(p *Prober) { p.allow = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) { p.log = logger.OrNop(l) }
}

// New builds a prober bounded by cfg.
func New(cfg config.ProbeConfig, opts ...Option) *Prober {
	p := &Prober{
		allow:  DefaultAllowList(),
		runner: executor.Shell{},
		limits: executor.Limits{
			Timeout:  cfg.CheckTimeout,
			MaxBytes: cfg.MaxBytes,
		},
		maxChecks: cfg.MaxChecks,
		sanitizer: llm.DefaultSanitizer(),
		log:       zap.NewNop(),
	}
	if p.maxChecks <= 0 {
		p.maxChecks = 6
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AllowList exposes the admission rules, used to pick discriminative checks.
func (p *Prober) AllowList() *AllowList {
	return p.allow
}

// MaxDuration bounds a full probe pass.
func (p *Prober) MaxDuration() time.Duration {
	t := p.limits.Timeout
	if t <= 0 {
		t = 5 * time.Second
	}
	return time.Duration(p.maxChecks) * t
}

type planned struct {
	command string
	owners  []string
}

// Probe runs the ideas' verification steps and returns copies of the
// ideas with evidence attached. With runChecks false nothing is executed
// and the ideas come back unchanged.
func (p *Prober) Probe(ctx context.Context, ideas []model.Idea, runChecks bool) ([]model.Idea, Report) {
	out := model.CloneAll(ideas)
	if !runChecks {
		return out, Report{DryRun: true, Commands: []CommandStatus{}}
	}

	steps := make([][]string, len(out))
	owners := make([]string, len(out))
	for i, idea := range out {
		steps[i] = idea.VerificationSteps
		owners[i] = idea.ID
	}

	evidence, report := p.run(ctx, owners, steps)
	for i := range out {
		if ev := evidence[out[i].ID]; len(ev) > 0 {
			out[i].Evidence = append(out[i].Evidence, ev...)
		}
	}
	return out, report
}

// ProbeChecks runs a flat list of checks and returns evidence keyed by the
// command exactly as given.
func (p *Prober) ProbeChecks(ctx context.Context, checks []string) (map[string]model.Evidence, Report) {
	owners := make([]string, len(checks))
	steps := make([][]string, len(checks))
	for i, c := range checks {
		owners[i] = c
		steps[i] = []string{c}
	}

	evidence, report := p.run(ctx, owners, steps)
	out := make(map[string]model.Evidence, len(evidence))
	for owner, ev := range evidence {
		if len(ev) > 0 {
			out[owner] = ev[0]
		}
	}
	return out, report
}

// run plans round-robin across owners so one verbose idea cannot use the
// whole budget, then executes sequentially.
func (p *Prober) run(ctx context.Context, owners []string, steps [][]string) (map[string][]model.Evidence, Report) {
	report := Report{Commands: []CommandStatus{}}
	var plan []*planned
	byCommand := map[string]*planned{}
	rejected := map[string]bool{}
	skipped := map[string]bool{}

	for round := 0; ; round++ {
		more := false
		for i, list := range steps {
			if round >= len(list) {
				continue
			}
			more = true
			raw := list[round]

			norm, err := p.allow.Admit(raw)
			if err != nil {
				if !rejected[raw] {
					rejected[raw] = true
					report.Rejected++
					report.Commands = append(report.Commands, CommandStatus{
						Command: raw,
						Status:  StatusRejected,
						Reason:  reason(err),
						Owners:  []string{owners[i]},
					})
				}
				continue
			}

			if pl, ok := byCommand[norm]; ok {
				pl.owners = appendUnique(pl.owners, owners[i])
				continue
			}
			if len(plan) >= p.maxChecks {
				if !skipped[norm] {
					skipped[norm] = true
					report.Skipped++
					report.Commands = append(report.Commands, CommandStatus{
						Command: norm,
						Status:  StatusSkipped,
						Reason:  "check limit reached",
						Owners:  []string{owners[i]},
					})
				}
				continue
			}
			pl := &planned{command: norm, owners: []string{owners[i]}}
			byCommand[norm] = pl
			plan = append(plan, pl)
		}
		if !more {
			break
		}
	}

	evidence := make(map[string][]model.Evidence)
	for _, pl := range plan {
		if ctx.Err() != nil {
			report.Skipped++
			report.Commands = append(report.Commands, CommandStatus{
				Command: pl.command,
				Status:  StatusSkipped,
				Reason:  "stage deadline reached",
				Owners:  pl.owners,
			})
			continue
		}

		res := p.runner.Run(ctx, pl.command, p.limits)
		ev := model.Evidence{
			Command:       pl.command,
			StdoutExcerpt: p.sanitizer.Sanitize(res.Output),
			ExitStatus:    res.ExitCode,
			Truncated:     res.Truncated,
			TimedOut:      res.TimedOut,
			DurationMs:    res.Duration.Milliseconds(),
		}

		status := CommandStatus{Command: pl.command, Status: StatusExecuted, Truncated: res.Truncated, Owners: pl.owners}
		report.Executed++
		if res.TimedOut {
			report.TimedOut++
			status.Status = StatusTimedOut
		}
		if res.Truncated {
			report.Truncated++
		}
		report.Commands = append(report.Commands, status)

		p.log.Debug("probe command finished",
			zap.String("command", pl.command),
			zap.Int("exit", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut),
			zap.Bool("truncated", res.Truncated),
			zap.Duration("duration", res.Duration),
		)

		for _, owner := range pl.owners {
			evidence[owner] = append(evidence[owner], ev)
		}
	}

	p.log.Info("probe finished",
		zap.Int("executed", report.Executed),
		zap.Int("rejected", report.Rejected),
		zap.Int("timed_out", report.TimedOut),
		zap.Int("skipped", report.Skipped),
	)
	return evidence, report
}

func reason(err error) string {
	msg := err.Error()
	prefix := ErrCommandRejected.Error() + ": "
	if errors.Is(err, ErrCommandRejected) && len(msg) > len(prefix) {
		return msg[len(prefix):]
	}
	return msg
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
