package judge

import (
	"fmt"
	"regexp"
	"strings"

	"roadnerd/internal/model"
	"roadnerd/internal/safety"
)

// categoryTerms are issue words that make a candidate's category plausible.
var categoryTerms = map[string][]string{
	"wifi":        {"wifi", "wi-fi", "wireless", "wlan", "ssid", "hotspot", "router"},
	"dns":         {"dns", "resolve", "resolv", "domain", "nslookup", "hostname", "name"},
	"network":     {"network", "internet", "ethernet", "connect", "connection", "offline", "ip", "gateway", "vpn"},
	"power":       {"battery", "power", "charge", "charging", "charger", "suspend", "sleep"},
	"boot":        {"boot", "grub", "startup", "bios", "uefi", "initramfs"},
	"hardware":    {"disk", "screen", "display", "keyboard", "usb", "fan", "touchpad", "audio", "sound", "printer"},
	"physical":    {"cable", "plug", "dropped", "spill", "broken", "cracked", "loose"},
	"software":    {"install", "package", "app", "application", "crash", "update", "upgrade", "dependency"},
	"user":        {"password", "login", "account", "permission", "sudo", "locked"},
	"performance": {"slow", "lag", "laggy", "cpu", "memory", "ram", "freeze", "hang", "hot"},
	"system":      {"kernel", "service", "systemd", "journal", "log", "driver", "module"},
}

var (
	wordRe       = regexp.MustCompile(`[a-z0-9-]+`)
	foreignTools = regexp.MustCompile(`(?i)^(ipconfig|netsh|powershell|cmd\b|get-[a-z]+|networksetup|scutil|diskutil|sc query|reg query|tasklist|systeminfo)`)
	faultMarkers = regexp.MustCompile(`(?i)(not found|no such|failed|failure|unreachable|disabled|blocked|soft blocked: yes|hard blocked: yes|state down|no-carrier|timed out|servfail|nxdomain|error)`)
	rebootRe     = regexp.MustCompile(`(?i)\b(reboot|restart (the )?(machine|computer|laptop|system)|shutdown -r|power cycle)\b`)
	reinstallRe  = regexp.MustCompile(`(?i)\b(reinstall (the )?(os|system|operating system)|factory reset|reformat|mkfs|fresh install)\b`)
)

type heuristic struct {
	checker *safety.Checker
}

type axisScores struct {
	scores map[model.Axis]float64
	notes  map[model.Axis][]string
}

func (h heuristic) score(issue string, idea model.Idea) axisScores {
	s := axisScores{
		scores: make(map[model.Axis]float64, len(model.Axes)),
		notes:  make(map[model.Axis][]string, len(model.Axes)),
	}
	s.scores[model.AxisSafety] = h.safety(idea, s.note(model.AxisSafety))
	s.scores[model.AxisSuccess] = success(issue, idea, s.note(model.AxisSuccess))
	s.scores[model.AxisCost] = cost(idea, s.note(model.AxisCost))
	s.scores[model.AxisDeterminism] = determinism(idea, s.note(model.AxisDeterminism))
	return s
}

func (s axisScores) note(axis model.Axis) func(string, ...any) {
	return func(format string, args ...any) {
		s.notes[axis] = append(s.notes[axis], fmt.Sprintf(format, args...))
	}
}

func (h heuristic) safety(idea model.Idea, note func(string, ...any)) float64 {
	var v float64
	switch idea.Risk {
	case model.RiskLow:
		v = 0.9
	case model.RiskHigh:
		v = 0.2
	default:
		v = 0.6
	}
	note("risk %s", riskName(idea.Risk))

	destructive, sudo := false, 0
	for _, step := range idea.RemediationSteps {
		a := h.checker.Analyze(step)
		destructive = destructive || a.Destructive
		if a.RequiresSudo {
			sudo++
		}
	}
	if destructive {
		v -= 0.3
		note("destructive fix")
	}
	if sudo > 0 {
		v -= min(0.05*float64(sudo), 0.15)
		note("%d privileged step(s)", sudo)
	}
	return clamp01(v)
}

func success(issue string, idea model.Idea, note func(string, ...any)) float64 {
	v := 0.5
	issueWords := words(issue)

	for _, term := range categoryTerms[strings.ToLower(idea.Category)] {
		if issueWords[term] {
			v += 0.2
			note("category fits issue")
			break
		}
	}

	hyp := words(idea.Hypothesis)
	var content, shared int
	for w := range hyp {
		if len(w) <= 3 {
			continue
		}
		content++
		if issueWords[w] {
			shared++
		}
	}
	if content > 0 && shared > 0 {
		v += 0.1 * min(1, 2*float64(shared)/float64(content))
		note("hypothesis echoes issue")
	}

	if len(idea.VerificationSteps) > 0 {
		foreign := false
		for _, step := range idea.VerificationSteps {
			if foreignTools.MatchString(strings.TrimSpace(step)) {
				foreign = true
				break
			}
		}
		if foreign {
			v -= 0.1
			note("checks for another OS")
		} else {
			v += 0.05
		}
	}

	if len(idea.Evidence) > 0 {
		ran, markers := 0, false
		for _, ev := range idea.Evidence {
			if ev.Succeeded() {
				ran++
				if faultMarkers.MatchString(ev.StdoutExcerpt) {
					markers = true
				}
			}
		}
		switch {
		case ran == 0:
			v -= 0.1
			note("no check completed")
		default:
			v += 0.1
			note("%d/%d checks completed", ran, len(idea.Evidence))
		}
		if markers {
			v += 0.1
			note("evidence shows a fault")
		}
	}
	return clamp01(v)
}

func cost(idea model.Idea, note func(string, ...any)) float64 {
	v := 0.8
	if n := len(idea.RemediationSteps); n > 2 {
		v -= 0.05 * float64(n-2)
		note("%d fix steps", n)
	}
	joined := strings.Join(idea.RemediationSteps, "\n")
	if rebootRe.MatchString(joined) {
		v = min(v, 0.3)
		note("needs reboot")
	}
	if reinstallRe.MatchString(joined) {
		v = min(v, 0.1)
		note("needs reinstall")
	}
	return clamp01(v)
}

func determinism(idea model.Idea, note func(string, ...any)) float64 {
	v := 0.6
	if len(idea.VerificationSteps) > 0 {
		v += 0.2
		note("verifiable")
	} else {
		note("no checks")
	}
	if len(idea.RemediationSteps) > 1 {
		v -= 0.1
	}
	if len(idea.Evidence) > 0 {
		v += 0.1
		note("evidence attached")
	}
	return clamp01(v)
}

func words(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		out[w] = true
	}
	return out
}

func riskName(r model.Risk) string {
	if r == "" {
		return string(model.RiskMedium)
	}
	return string(r)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
