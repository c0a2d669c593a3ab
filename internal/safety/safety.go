// Package safety classifies shell commands by how much damage they could do.
// Remediation steps are never executed; this package only decides how they
// are presented and how they weigh on ranking.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"roadnerd/internal/model"
)

// DefaultDestructivePatterns returns common dangerous command fragments.
// Matching is case-insensitive substring.
func DefaultDestructivePatterns() []string {
	return []string{
		"rm -rf",
		"rm -r /",
		"rm -fr",
		"dd if=",
		"mkfs",
		"wipefs",
		"shred ",
		"fdisk",
		"parted ",
		"> /dev/",
		"chmod 777",
		"chmod -r",
		"chown -r",
		":(){ :|:& };:",
		"iptables -f",
		"userdel",
		"passwd -d",
		"shutdown",
		"reboot",
		"poweroff",
		"halt",
		"kill -9",
		"killall",
		"systemctl stop",
		"systemctl disable",
		"systemctl mask",
		"apt remove",
		"apt purge",
		"apt-get remove",
		"apt-get purge",
		"dnf remove",
		"dpkg -r",
		"dpkg --purge",
		"git reset --hard",
		"git clean -fdx",
		"docker system prune",
	}
}

var sudoRe = regexp.MustCompile(`(^|[\s;|&(])sudo\s`)

// Analysis is the verdict for one command.
type Analysis struct {
	Command      string     `json:"command"`
	Risk         model.Risk `json:"risk"`
	Warnings     []string   `json:"warnings,omitempty"`
	RequiresSudo bool       `json:"requires_sudo"`
	Destructive  bool       `json:"destructive"`
}

// Checker holds the pattern table. The zero value is not usable; use New.
type Checker struct {
	patterns []string
}

func New(patterns ...string) *Checker {
	if len(patterns) == 0 {
		patterns = DefaultDestructivePatterns()
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Checker{patterns: lowered}
}

// Analyze reports risk, sudo use and matched destructive fragments.
func (c *Checker) Analyze(command string) Analysis {
	cmd := strings.TrimSpace(command)
	a := Analysis{Command: cmd, Risk: model.RiskLow}
	lower := strings.ToLower(cmd)

	for _, p := range c.patterns {
		if strings.Contains(lower, p) {
			a.Destructive = true
			a.Warnings = append(a.Warnings, fmt.Sprintf("matches destructive pattern %q", p))
		}
	}
	if sudoRe.MatchString(lower) {
		a.RequiresSudo = true
		a.Warnings = append(a.Warnings, "requires elevated privileges")
	}

	switch {
	case a.Destructive:
		a.Risk = model.RiskHigh
	case a.RequiresSudo:
		a.Risk = model.RiskMedium
	}
	return a
}

// IsDestructive checks if a command matches any destructive pattern.
func (c *Checker) IsDestructive(command string) bool {
	lower := strings.ToLower(command)
	for _, p := range c.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// PreviewAction is a remediation step rendered for the operator, never run.
type PreviewAction struct {
	StepID      string `json:"step_id"`
	Description string `json:"description"`
	Command     string `json:"command"`
	Destructive bool   `json:"destructive"`
	Sudo        bool   `json:"sudo"`
}

// Preview turns an idea's remediation steps into preview actions.
func (c *Checker) Preview(idea model.Idea) []PreviewAction {
	out := make([]PreviewAction, 0, len(idea.RemediationSteps))
	for i, step := range idea.RemediationSteps {
		a := c.Analyze(step)
		out = append(out, PreviewAction{
			StepID:      fmt.Sprintf("%s-fix-%d", idea.ID, i+1),
			Description: idea.Hypothesis,
			Command:     a.Command,
			Destructive: a.Destructive,
			Sudo:        a.RequiresSudo,
		})
	}
	return out
}

// Summary formats preview actions for a terminal.
func Summary(actions []PreviewAction) string {
	if len(actions) == 0 {
		return "No actions would be taken."
	}

	var sb strings.Builder
	sb.WriteString("Suggested remediation (not executed):\n\n")

	destructive := 0
	for i, action := range actions {
		marker := "  "
		if action.Destructive {
			marker = "!!"
			destructive++
		}
		fmt.Fprintf(&sb, "%d. %s $ %s\n", i+1, marker, action.Command)
	}

	if destructive > 0 {
		fmt.Fprintf(&sb, "\n%d potentially destructive action(s). Review carefully before running.\n", destructive)
	}
	return sb.String()
}
